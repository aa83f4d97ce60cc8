package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/domain/entities"
)

// CleanupResult reports a retention sweep. Removal failures are per-tag and
// never abort the sweep.
type CleanupResult struct {
	Kept         []string          `json:"kept"`
	Removed      []string          `json:"removed"`
	Before       int               `json:"before"`
	After        int               `json:"after"`
	RemoveErrors map[string]string `json:"remove_errors,omitempty"`
}

// Cleanup prunes image tags outside the keep schedule: the three protected
// sentinels, the three most recent successful builds, at most one build per
// calendar week for the preceding four weeks, and at most one per calendar
// month for the preceding three months. Running it twice in a row removes
// nothing on the second pass.
func (s *BuildService) Cleanup(ctx context.Context) (*CleanupResult, error) {
	// The sweep must not interleave with a build or rollback: the keep set is
	// computed from the history, and a build landing between that read and the
	// tag enumeration would have its fresh tag removed.
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	repo := cfg.Defaults.Image

	records, err := s.history.List(0, false)
	if err != nil {
		return nil, err
	}

	keep := s.keepSet(records, time.Now().UTC())

	present, err := s.images.ListTags(ctx, repo)
	if err != nil {
		return nil, err
	}
	sort.Strings(present)

	result := &CleanupResult{
		Kept:    []string{},
		Removed: []string{},
		Before:  len(present),
	}
	for _, tag := range present {
		if keep[tag] {
			result.Kept = append(result.Kept, tag)
			continue
		}
		if err := s.images.Remove(ctx, s.ref(repo, tag)); err != nil {
			logger.Warn("failed to remove image tag", zap.String("tag", tag), zap.Error(err))
			if result.RemoveErrors == nil {
				result.RemoveErrors = map[string]string{}
			}
			result.RemoveErrors[tag] = err.Error()
			result.Kept = append(result.Kept, tag)
			continue
		}
		result.Removed = append(result.Removed, tag)
	}
	result.After = len(result.Kept)
	return result, nil
}

// keepSet computes the protected tag names from the history. Only successful
// timestamp-tagged builds participate in the schedule, so synthetic entries
// (rollback-to-*, restart-only) never shift the keep window.
func (s *BuildService) keepSet(records []entities.BuildRecord, now time.Time) map[string]bool {
	keep := map[string]bool{
		entities.TagCurrent:        true,
		entities.TagRollbackSafety: true,
		entities.TagPreRollback:    true,
	}

	builds := make([]entities.BuildRecord, 0, len(records))
	for _, rec := range records {
		if rec.Success && entities.IsBuildTag(rec.Tag) {
			builds = append(builds, rec)
		}
	}

	weekCutoff := now.AddDate(0, 0, -28)
	monthCutoff := now.AddDate(0, -3, 0)
	weekSeen := map[string]bool{}
	monthSeen := map[string]bool{}

	for i, rec := range builds {
		if i < 3 {
			keep[rec.Tag] = true
			continue
		}
		if rec.Timestamp.After(weekCutoff) {
			year, week := rec.Timestamp.ISOWeek()
			key := fmt.Sprintf("%d-W%02d", year, week)
			if !weekSeen[key] {
				weekSeen[key] = true
				keep[rec.Tag] = true
			}
			continue
		}
		if rec.Timestamp.After(monthCutoff) {
			key := rec.Timestamp.Format("2006-01")
			if !monthSeen[key] {
				monthSeen[key] = true
				keep[rec.Tag] = true
			}
		}
	}
	return keep
}
