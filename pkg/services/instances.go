package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/store"
)

// InstanceService provisions tenant stacks and drives their lifecycle.
type InstanceService struct {
	store  *store.DeploymentStore
	images ImageClient
	stacks StackManager
}

func NewInstanceService(deployments *store.DeploymentStore, images ImageClient, stacks StackManager) *InstanceService {
	return &InstanceService{store: deployments, images: images, stacks: stacks}
}

type ProvisionRequest struct {
	Name          string
	DisplayName   string
	APIKey        string
	PostgresImage string
}

// ProvisionResult carries everything the operator needs to hand to the
// tenant. The API key remains retrievable from the registry afterwards.
type ProvisionResult struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	AdminURL string `json:"admin_url"`
	APIKey   string `json:"api_key"`
}

// InstanceView merges a registry record with the live container state.
type InstanceView struct {
	entities.InstanceRecord
	ContainerState string `json:"container_state"`
}

func randomSecret(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Provision creates a new tenant instance end to end: validation, credential
// generation, stack rendering, registration, start. A failed start leaves the
// record registered with status "created" so the operator can retry the start
// without re-provisioning.
func (s *InstanceService) Provision(ctx context.Context, req ProvisionRequest) (*ProvisionResult, error) {
	if !entities.ValidInstanceName(req.Name) {
		return nil, entities.NewValidationError(
			"invalid instance name %q: must be a lowercase slug of letters, digits and hyphens", req.Name)
	}
	if req.DisplayName == "" {
		return nil, entities.NewValidationError("display_name is required")
	}

	// The registry and the runtime can desynchronize, so both are checked and
	// reported as distinct conflicts.
	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	if _, exists := cfg.Instances[req.Name]; exists {
		return nil, entities.NewConflictError("instance %q already exists", req.Name)
	}
	for _, container := range []string{entities.AppContainerName(req.Name), entities.DBContainerName(req.Name)} {
		state, err := s.images.ContainerState(ctx, container)
		if err != nil {
			return nil, err
		}
		if state != "" {
			return nil, entities.NewConflictError("container %q already exists in the runtime", container)
		}
	}

	dbPassword, err := randomSecret(16)
	if err != nil {
		return nil, err
	}
	apiKey := req.APIKey
	if apiKey == "" {
		if apiKey, err = randomSecret(24); err != nil {
			return nil, err
		}
	}

	subdomain := entities.SubdomainFor(req.Name)
	inst := &entities.InstanceRecord{
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Subdomain:     subdomain,
		URL:           fmt.Sprintf("https://%s.%s", subdomain, cfg.Defaults.DomainSuffix),
		APIKey:        apiKey,
		DBPassword:    dbPassword,
		CreatedAt:     time.Now().UTC(),
		Status:        entities.InstanceStatusCreated,
		PostgresImage: req.PostgresImage,
	}

	// Claim the name in the registry before touching the filesystem: of two
	// concurrent provisions for the same slug, only the claim winner may write
	// stack files.
	if err := s.store.Update(func(cfg *entities.DeploymentConfig) error {
		if _, exists := cfg.Instances[req.Name]; exists {
			return entities.NewConflictError("instance %q already exists", req.Name)
		}
		cfg.Instances[req.Name] = inst
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.stacks.WriteStackFiles(inst, cfg.Defaults); err != nil {
		if relErr := s.store.Update(func(cfg *entities.DeploymentConfig) error {
			delete(cfg.Instances, req.Name)
			return nil
		}); relErr != nil {
			logger.Error("failed to release name after render failure",
				zap.String("instance", req.Name), zap.Error(relErr))
		}
		return nil, entities.NewExecutionError("render stack definition", err, "", "")
	}

	result := &ProvisionResult{
		Name:     inst.Name,
		URL:      inst.URL,
		AdminURL: inst.URL + "/admin",
		APIKey:   inst.APIKey,
	}

	if err := s.stacks.Up(ctx, req.Name); err != nil {
		logger.Error("instance provisioned but failed to start",
			zap.String("instance", req.Name), zap.Error(err))
		return result, nil
	}
	if err := s.store.SetStatus(req.Name, entities.InstanceStatusRunning); err != nil {
		logger.Warn("failed to record running status", zap.String("instance", req.Name), zap.Error(err))
	}
	return result, nil
}

// List returns all registry entries merged with live container state.
func (s *InstanceService) List(ctx context.Context) ([]InstanceView, error) {
	cfg, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	views := make([]InstanceView, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		state, err := s.images.ContainerState(ctx, entities.AppContainerName(inst.Name))
		if err != nil {
			logger.Warn("failed to probe container state", zap.String("instance", inst.Name), zap.Error(err))
			state = ""
		}
		views = append(views, InstanceView{InstanceRecord: *inst, ContainerState: state})
	}
	return views, nil
}

// Get returns one instance merged with live container state.
func (s *InstanceService) Get(ctx context.Context, name string) (*InstanceView, error) {
	inst, err := s.store.GetInstance(name)
	if err != nil {
		return nil, err
	}
	state, err := s.images.ContainerState(ctx, entities.AppContainerName(name))
	if err != nil {
		state = ""
	}
	return &InstanceView{InstanceRecord: *inst, ContainerState: state}, nil
}

// Start brings an existing stack up.
func (s *InstanceService) Start(ctx context.Context, name string) error {
	if _, err := s.store.GetInstance(name); err != nil {
		return err
	}
	if err := s.stacks.Up(ctx, name); err != nil {
		return err
	}
	return s.store.SetStatus(name, entities.InstanceStatusRunning)
}

// Stop halts an existing stack.
func (s *InstanceService) Stop(ctx context.Context, name string) error {
	if _, err := s.store.GetInstance(name); err != nil {
		return err
	}
	if err := s.stacks.Stop(ctx, name); err != nil {
		return err
	}
	return s.store.SetStatus(name, entities.InstanceStatusStopped)
}

// Restart restarts both services of an existing stack.
func (s *InstanceService) Restart(ctx context.Context, name string) error {
	if _, err := s.store.GetInstance(name); err != nil {
		return err
	}
	if err := s.stacks.Restart(ctx, name); err != nil {
		return err
	}
	return s.store.SetStatus(name, entities.InstanceStatusRunning)
}

// Remove tears a stack down and deletes its registry entry. When deleteData
// is set the volumes and the rendered stack directory are destroyed too.
func (s *InstanceService) Remove(ctx context.Context, name string, deleteData bool) error {
	if _, err := s.store.GetInstance(name); err != nil {
		return err
	}
	if err := s.stacks.Down(ctx, name, deleteData); err != nil {
		return err
	}
	if deleteData {
		if err := s.stacks.RemoveStackDir(name); err != nil {
			logger.Warn("failed to remove stack dir", zap.String("instance", name), zap.Error(err))
		}
	}
	return s.store.Update(func(cfg *entities.DeploymentConfig) error {
		if _, ok := cfg.Instances[name]; !ok {
			return entities.NewNotFoundError("instance %q not found", name)
		}
		delete(cfg.Instances, name)
		return nil
	})
}

// UpdateEnv merges environment variables into the instance's secrets file and
// optionally restarts the stack to apply them.
func (s *InstanceService) UpdateEnv(ctx context.Context, name string, vars map[string]string, restart bool) error {
	if len(vars) == 0 {
		return entities.NewValidationError("env is required")
	}
	if _, err := s.store.GetInstance(name); err != nil {
		return err
	}
	if err := s.stacks.MergeEnv(name, vars); err != nil {
		return entities.NewExecutionError("merge env vars", err, "", "")
	}
	if !restart {
		return nil
	}
	if err := s.stacks.Restart(ctx, name); err != nil {
		return err
	}
	return s.store.SetStatus(name, entities.InstanceStatusRunning)
}
