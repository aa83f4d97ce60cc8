package services

import (
	"sync"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/store"
)

// TokenService fronts the token store for the RBAC gate and the token
// management endpoints.
type TokenService struct {
	store        *store.TokenStore
	bootstrap    string
	openModeWarn sync.Once
}

func NewTokenService(tokens *store.TokenStore, bootstrap string) *TokenService {
	return &TokenService{store: tokens, bootstrap: bootstrap}
}

// EnsureBootstrap migrates the legacy shared secret into the store as an
// admin token on first boot, so existing deployments are not locked out when
// the store is introduced.
func (s *TokenService) EnsureBootstrap() error {
	if s.bootstrap == "" {
		return nil
	}
	return s.store.Import(s.bootstrap, "bootstrap", entities.RoleAdmin)
}

// OpenMode reports whether authentication is effectively disabled: no tokens
// exist and no bootstrap credential is configured. This is a deliberate
// first-run convenience and is surfaced loudly, never assumed silently.
func (s *TokenService) OpenMode() bool {
	if s.bootstrap != "" {
		return false
	}
	n, err := s.store.Count()
	if err != nil {
		return false
	}
	if n == 0 {
		s.openModeWarn.Do(func() {
			logger.Warn("no access tokens configured: authentication is DISABLED until a token is created")
		})
		return true
	}
	return false
}

// Authenticate resolves a raw bearer token to its record.
func (s *TokenService) Authenticate(raw string) (*entities.TokenRecord, error) {
	return s.store.Authenticate(raw)
}

// CreatedToken pairs the one-time raw value with the stored metadata.
type CreatedToken struct {
	Token string             `json:"token"`
	Info  entities.TokenView `json:"info"`
}

// Create mints a token. The raw value in the result is the only time it is
// ever disclosed.
func (s *TokenService) Create(label, role string) (*CreatedToken, error) {
	if label == "" {
		return nil, entities.NewValidationError("label is required")
	}
	parsed, err := entities.ParseRole(role)
	if err != nil {
		return nil, err
	}
	raw, rec, err := s.store.Create(label, parsed)
	if err != nil {
		return nil, err
	}
	return &CreatedToken{Token: raw, Info: rec.Public()}, nil
}

// Delete revokes a token; deleting the last remaining one is refused.
func (s *TokenService) Delete(id string) error {
	return s.store.Delete(id)
}

// List returns token metadata without hashes.
func (s *TokenService) List() ([]entities.TokenView, error) {
	recs, err := s.store.List()
	if err != nil {
		return nil, err
	}
	views := make([]entities.TokenView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, rec.Public())
	}
	return views, nil
}
