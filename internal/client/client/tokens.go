package client

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/encounterscribe/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/encounterscribe/internal/logging"
)

// TokenStore holds the current access credential. Readers must call Get at
// request time rather than caching the value, since a refresh may replace
// it at any moment.
type TokenStore interface {
	Get() (string, bool)
	Set(token string)
	Clear()
}

type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (s *MemoryTokenStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *MemoryTokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() {
	s.Set("")
}

// PersistentTokenStore keeps the credential in memory and writes every
// change through to the local metadata store, so a restarted client stays
// signed in. Write failures are logged; the in-memory value stays current.
type PersistentTokenStore struct {
	mem    MemoryTokenStore
	repo   metadata.Repository
	logger logging.Logger
}

func NewPersistentTokenStore(ctx context.Context, repo metadata.Repository, logger logging.Logger) (*PersistentTokenStore, error) {
	s := &PersistentTokenStore{repo: repo, logger: logger}

	token, ok, err := metadata.GetText(ctx, repo, metadata.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if ok {
		s.mem.Set(token)
	}
	return s, nil
}

func (s *PersistentTokenStore) Get() (string, bool) {
	return s.mem.Get()
}

func (s *PersistentTokenStore) Set(token string) {
	s.mem.Set(token)
	if err := metadata.SetText(context.Background(), s.repo, metadata.KeyAccessToken, token); err != nil {
		s.logger.Error(context.Background(), "persist access token", "error", err)
	}
}

func (s *PersistentTokenStore) Clear() {
	s.mem.Clear()
	if err := s.repo.Delete(context.Background(), metadata.KeyAccessToken); err != nil {
		s.logger.Error(context.Background(), "clear access token", "error", err)
	}
}
