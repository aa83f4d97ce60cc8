package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/execx"
	"github.com/getship/shipd/pkg/infrastructure/store"
)

// BuildService owns the shared image tag space: builds, rollbacks and the
// retention sweep. Builds and rollbacks are serialized against each other by
// the service mutex because both re-point the current tag and the safety-net
// tags.
type BuildService struct {
	mu      sync.Mutex
	store   *store.DeploymentStore
	history *store.HistoryLog
	images  ImageClient
	stacks  StackManager
	runner  execx.Runner
	tasks   TaskManager
	hub     Publisher
}

func NewBuildService(
	deployments *store.DeploymentStore,
	history *store.HistoryLog,
	images ImageClient,
	stacks StackManager,
	runner execx.Runner,
	tasks TaskManager,
	hub Publisher,
) *BuildService {
	return &BuildService{
		store:   deployments,
		history: history,
		images:  images,
		stacks:  stacks,
		runner:  runner,
		tasks:   tasks,
		hub:     hub,
	}
}

type RebuildRequest struct {
	// Instance scopes the restart to one stack; empty means the whole fleet.
	Instance    string
	SkipBuild   bool
	TriggeredBy string
}

// RebuildResult reports the appended history record plus any per-target
// restart failures. Restart failures do not fail the overall operation once
// the build itself has succeeded.
type RebuildResult struct {
	Record        entities.BuildRecord `json:"record"`
	RestartErrors map[string]string    `json:"restart_errors,omitempty"`
}

func (s *BuildService) publish(line string) {
	if s.hub != nil {
		s.hub.Broadcast(BuildLogChannel, []byte(line))
	}
}

func (s *BuildService) ref(repo, tag string) string {
	return repo + ":" + tag
}

// Rebuild builds the shared image from source and force-recreates the target
// application services. A failed build never touches running instances.
func (s *BuildService) Rebuild(ctx context.Context, req RebuildRequest) (*RebuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	repo := cfg.Defaults.Image
	current := s.ref(repo, entities.TagCurrent)

	commitHash, commitSubject := sourceRevision(ctx, s.runner, cfg.Defaults.SourcePath)

	started := time.Now()
	tag := entities.TagRestartOnly
	imageID := ""

	if !req.SkipBuild {
		tag = started.UTC().Format(entities.BuildTagLayout)

		// Safety net: keep the outgoing image reachable. Best-effort because
		// the current tag does not exist before the first build.
		if _, err := s.images.Resolve(ctx, current); err == nil {
			if err := s.images.Tag(ctx, current, s.ref(repo, entities.TagRollbackSafety)); err != nil {
				logger.Warn("failed to tag rollback safety net", zap.Error(err))
			}
		}

		s.publish("building " + s.ref(repo, tag))
		imageID, err = s.images.Build(ctx, cfg.Defaults.SourcePath,
			[]string{current, s.ref(repo, tag)}, s.publish)
		if err != nil {
			rec := entities.BuildRecord{
				ID:                 uuid.New(),
				Tag:                tag,
				Timestamp:          started.UTC(),
				CommitHash:         commitHash,
				CommitSubject:      commitSubject,
				Success:            false,
				Error:              err.Error(),
				DurationMs:         time.Since(started).Milliseconds(),
				TriggeredBy:        req.TriggeredBy,
				InstancesRestarted: []string{},
			}
			if histErr := s.history.Append(rec); histErr != nil {
				logger.Error("failed to append failed build record", zap.Error(histErr))
			}
			s.publish("build failed: " + err.Error())
			return nil, err
		}
	} else if info, err := s.images.Resolve(ctx, current); err == nil {
		imageID = info.ID
	}

	restarted, restartErrors := s.restartTargets(ctx, req.Instance)

	rec := entities.BuildRecord{
		ID:                 uuid.New(),
		Tag:                tag,
		Timestamp:          started.UTC(),
		CommitHash:         commitHash,
		CommitSubject:      commitSubject,
		ImageID:            imageID,
		Success:            true,
		DurationMs:         time.Since(started).Milliseconds(),
		TriggeredBy:        req.TriggeredBy,
		InstancesRestarted: restarted,
	}
	if err := s.history.Append(rec); err != nil {
		logger.Error("failed to append build record", zap.Error(err))
	}
	s.publish("build finished: " + rec.Tag)

	// The sweep runs in the background; its failure never fails the build
	// response.
	s.tasks.AddTask(func() {
		if _, err := s.Cleanup(context.Background()); err != nil {
			logger.Warn("retention sweep after build failed", zap.Error(err))
		}
	})

	return &RebuildResult{Record: rec, RestartErrors: restartErrors}, nil
}

// restartTargets force-recreates the app service of each target. Targets are
// resolved against a fresh registry snapshot; one that has vanished since the
// request started yields a per-target error, never an abort.
func (s *BuildService) restartTargets(ctx context.Context, only string) ([]string, map[string]string) {
	restarted := []string{}
	restartErrors := map[string]string{}

	cfg, err := s.store.Get()
	if err != nil {
		restartErrors["*"] = err.Error()
		return restarted, restartErrors
	}

	var targets []string
	if only != "" {
		targets = []string{only}
	} else {
		targets = cfg.InstanceNames()
		sort.Strings(targets)
	}

	for _, name := range targets {
		if _, ok := cfg.Instances[name]; !ok {
			restartErrors[name] = "instance not found"
			continue
		}
		s.publish("restarting " + name)
		if err := s.stacks.RestartApp(ctx, name); err != nil {
			logger.Error("failed to restart instance", zap.String("instance", name), zap.Error(err))
			restartErrors[name] = err.Error()
			continue
		}
		if err := s.store.SetStatus(name, entities.InstanceStatusRunning); err != nil {
			logger.Warn("failed to record running status", zap.String("instance", name), zap.Error(err))
		}
		restarted = append(restarted, name)
	}
	return restarted, restartErrors
}

// Rollback re-points the current tag at a previously built tag and restarts
// the whole fleet. Rollback is always fleet-wide.
func (s *BuildService) Rollback(ctx context.Context, tag string) (*RebuildResult, error) {
	if tag == "" {
		return nil, entities.NewValidationError("tag is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	repo := cfg.Defaults.Image
	current := s.ref(repo, entities.TagCurrent)
	target := s.ref(repo, tag)

	info, err := s.images.Resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	// Best-effort pre-rollback safety net.
	if _, err := s.images.Resolve(ctx, current); err == nil {
		if err := s.images.Tag(ctx, current, s.ref(repo, entities.TagPreRollback)); err != nil {
			logger.Warn("failed to tag pre-rollback safety net", zap.Error(err))
		}
	}

	if err := s.images.Tag(ctx, target, current); err != nil {
		return nil, err
	}
	s.publish("rolled current tag back to " + tag)

	restarted, restartErrors := s.restartTargets(ctx, "")

	rec := entities.BuildRecord{
		ID:                 uuid.New(),
		Tag:                "rollback-to-" + tag,
		Timestamp:          time.Now().UTC(),
		CommitHash:         unknownRevision,
		CommitSubject:      unknownRevision,
		ImageID:            info.ID,
		Success:            true,
		DurationMs:         0,
		TriggeredBy:        "rollback",
		InstancesRestarted: restarted,
	}
	if err := s.history.Append(rec); err != nil {
		logger.Error("failed to append rollback record", zap.Error(err))
	}
	return &RebuildResult{Record: rec, RestartErrors: restartErrors}, nil
}

// History returns build records, newest first.
func (s *BuildService) History(limit int, includeFailed bool) ([]entities.BuildRecord, error) {
	return s.history.List(limit, includeFailed)
}
