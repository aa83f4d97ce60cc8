package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getship/shipd/pkg/domain/entities"
)

// TokenStore persists hashed bearer tokens. Raw tokens are never written to
// disk; authentication hashes the presented credential and looks the hash up.
type TokenStore struct {
	mu   sync.Mutex
	path string
}

type tokenDocument struct {
	Tokens []entities.TokenRecord `json:"tokens"`
}

func NewTokenStore(path string) (*TokenStore, error) {
	s := &TokenStore{path: path}
	var doc tokenDocument
	err := readDocument(path, &doc)
	if os.IsNotExist(err) {
		if err := writeDocument(path, &tokenDocument{Tokens: []entities.TokenRecord{}}); err != nil {
			return nil, fmt.Errorf("initialize token store: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token store: %w", err)
	}
	return s, nil
}

// HashToken derives the stored lookup hash for a raw bearer token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newRawToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "shp_" + hex.EncodeToString(buf), nil
}

func (s *TokenStore) load() (*tokenDocument, error) {
	var doc tokenDocument
	if err := readDocument(s.path, &doc); err != nil {
		return nil, fmt.Errorf("load token store: %w", err)
	}
	return &doc, nil
}

// Create mints a new token. The raw value is returned exactly once and only
// its hash is persisted.
func (s *TokenStore) Create(label string, role entities.Role) (string, entities.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return "", entities.TokenRecord{}, err
	}
	raw, err := newRawToken()
	if err != nil {
		return "", entities.TokenRecord{}, err
	}
	rec := entities.TokenRecord{
		ID:        uuid.New(),
		TokenHash: HashToken(raw),
		Label:     label,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	doc.Tokens = append(doc.Tokens, rec)
	if err := writeDocument(s.path, doc); err != nil {
		return "", entities.TokenRecord{}, fmt.Errorf("persist token store: %w", err)
	}
	return raw, rec, nil
}

// Import registers an externally supplied credential (the bootstrap secret)
// under the given label and role, unless its hash is already present.
func (s *TokenStore) Import(raw, label string, role entities.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	hash := HashToken(raw)
	for _, rec := range doc.Tokens {
		if rec.TokenHash == hash {
			return nil
		}
	}
	doc.Tokens = append(doc.Tokens, entities.TokenRecord{
		ID:        uuid.New(),
		TokenHash: hash,
		Label:     label,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
	if err := writeDocument(s.path, doc); err != nil {
		return fmt.Errorf("persist token store: %w", err)
	}
	return nil
}

// Authenticate resolves a raw token to its record and bumps last_used_at.
// The timestamp update is best-effort; a persist failure does not fail the
// authentication.
func (s *TokenStore) Authenticate(raw string) (*entities.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	hash := HashToken(raw)
	for i := range doc.Tokens {
		if doc.Tokens[i].TokenHash == hash {
			doc.Tokens[i].LastUsedAt = time.Now().UTC()
			rec := doc.Tokens[i]
			_ = writeDocument(s.path, doc)
			return &rec, nil
		}
	}
	return nil, entities.NewUnauthorizedError("invalid token")
}

// Delete revokes a token by id. Deleting the last remaining token is refused
// so the control plane cannot lock itself out into open mode by accident.
func (s *TokenStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	idx := -1
	for i, rec := range doc.Tokens {
		if rec.ID.String() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return entities.NewNotFoundError("token %q not found", id)
	}
	if len(doc.Tokens) == 1 {
		return entities.NewConflictError("cannot delete the last remaining token")
	}
	doc.Tokens = append(doc.Tokens[:idx], doc.Tokens[idx+1:]...)
	if err := writeDocument(s.path, doc); err != nil {
		return fmt.Errorf("persist token store: %w", err)
	}
	return nil
}

// List returns all records, hashes included; callers project to TokenView
// before responding.
func (s *TokenStore) List() ([]entities.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Tokens, nil
}

// Count returns the number of stored tokens.
func (s *TokenStore) Count() (int, error) {
	recs, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}
