package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/getship/shipd/pkg/domain/entities"
)

// DeploymentStore owns the deployment registry document. Every mutation is a
// serialized whole-document read-modify-write; concurrent writers cannot lose
// updates.
type DeploymentStore struct {
	mu   sync.Mutex
	path string
}

// NewDeploymentStore opens the registry at path, seeding it with the given
// defaults when no document exists yet.
func NewDeploymentStore(path string, defaults entities.Defaults) (*DeploymentStore, error) {
	s := &DeploymentStore{path: path}
	var cfg entities.DeploymentConfig
	err := readDocument(path, &cfg)
	if os.IsNotExist(err) {
		cfg = entities.DeploymentConfig{
			Defaults:  defaults,
			Instances: map[string]*entities.InstanceRecord{},
		}
		if err := writeDocument(path, &cfg); err != nil {
			return nil, fmt.Errorf("initialize deployment registry: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load deployment registry: %w", err)
	}
	return s, nil
}

func (s *DeploymentStore) load() (*entities.DeploymentConfig, error) {
	var cfg entities.DeploymentConfig
	if err := readDocument(s.path, &cfg); err != nil {
		return nil, fmt.Errorf("load deployment registry: %w", err)
	}
	if cfg.Instances == nil {
		cfg.Instances = map[string]*entities.InstanceRecord{}
	}
	return &cfg, nil
}

// Get returns a snapshot of the whole registry.
func (s *DeploymentStore) Get() (*entities.DeploymentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// GetInstance returns one instance record or a NotFound error.
func (s *DeploymentStore) GetInstance(name string) (*entities.InstanceRecord, error) {
	cfg, err := s.Get()
	if err != nil {
		return nil, err
	}
	inst, ok := cfg.Instances[name]
	if !ok {
		return nil, entities.NewNotFoundError("instance %q not found", name)
	}
	return inst, nil
}

// Update applies fn to the registry under the store lock and persists the
// result atomically. Returning an error from fn aborts without writing.
func (s *DeploymentStore) Update(fn func(cfg *entities.DeploymentConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := writeDocument(s.path, cfg); err != nil {
		return fmt.Errorf("persist deployment registry: %w", err)
	}
	return nil
}

// SetStatus updates one instance's status, failing with NotFound for unknown
// names.
func (s *DeploymentStore) SetStatus(name string, status entities.InstanceStatus) error {
	return s.Update(func(cfg *entities.DeploymentConfig) error {
		inst, ok := cfg.Instances[name]
		if !ok {
			return entities.NewNotFoundError("instance %q not found", name)
		}
		inst.Status = status
		return nil
	})
}
