package services

import (
	"context"
	"time"

	"github.com/getship/shipd/pkg/domain/entities"
)

// BuildInfo summarizes the gap between what is running and what the source
// checkout holds.
type BuildInfo struct {
	CurrentImageID  string                `json:"current_image_id,omitempty"`
	ImageCreatedAt  *time.Time            `json:"image_created_at,omitempty"`
	ImageAgeSeconds int64                 `json:"image_age_seconds,omitempty"`
	LastBuild       *entities.BuildRecord `json:"last_build,omitempty"`
	SourceCommit    string                `json:"source_commit"`
	PendingCommits  int                   `json:"pending_commits"`
	DiffStat        string                `json:"diff_stat,omitempty"`
}

// BuildInfo reports the current image age, the most recent successful build
// and how far the source checkout has drifted since. All probes are
// best-effort; a fleet with no builds yet still answers.
func (s *BuildService) BuildInfo(ctx context.Context) (*BuildInfo, error) {
	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}

	info := &BuildInfo{}

	if img, err := s.images.Resolve(ctx, s.ref(cfg.Defaults.Image, entities.TagCurrent)); err == nil {
		info.CurrentImageID = img.ID
		if !img.Created.IsZero() {
			created := img.Created
			info.ImageCreatedAt = &created
			info.ImageAgeSeconds = int64(time.Since(created).Seconds())
		}
	}

	if last, err := s.history.LatestSuccessful(); err == nil {
		info.LastBuild = last
		info.PendingCommits = commitsAhead(ctx, s.runner, cfg.Defaults.SourcePath, last.CommitHash)
	}

	head, _ := sourceRevision(ctx, s.runner, cfg.Defaults.SourcePath)
	info.SourceCommit = head
	info.DiffStat = diffStat(ctx, s.runner, cfg.Defaults.SourcePath)

	return info, nil
}
