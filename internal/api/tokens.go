package api

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

const (
	accessTokenKey  = "qfc_auth_token"
	refreshTokenKey = "qfc_refresh_token"
)

// TokenStore holds the bearer credentials injected into requests.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string)
	SetRefreshToken(token string)
	Clear()
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

func (m *MemoryTokenStore) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

func (m *MemoryTokenStore) SetAccessToken(token string) {
	m.mu.Lock()
	m.access = token
	m.mu.Unlock()
}

func (m *MemoryTokenStore) SetRefreshToken(token string) {
	m.mu.Lock()
	m.refresh = token
	m.mu.Unlock()
}

func (m *MemoryTokenStore) Clear() {
	m.mu.Lock()
	m.access, m.refresh = "", ""
	m.mu.Unlock()
}

// BlobStore is the subset of a session store the persistent token store
// needs. chat.SQLiteSessionStore satisfies it.
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// PersistentTokenStore caches tokens in memory and writes them through to a
// BlobStore so they survive restarts.
type PersistentTokenStore struct {
	mem    MemoryTokenStore
	blobs  BlobStore
	logger zerolog.Logger
}

// NewPersistentTokenStore loads any saved tokens from blobs
func NewPersistentTokenStore(ctx context.Context, blobs BlobStore, logger zerolog.Logger) *PersistentTokenStore {
	p := &PersistentTokenStore{blobs: blobs, logger: logger.With().Str("component", "tokens").Logger()}
	if b, err := blobs.Load(ctx, accessTokenKey); err != nil {
		p.logger.Warn().Err(err).Msg("failed to load auth token")
	} else if b != nil {
		p.mem.SetAccessToken(string(b))
	}
	if b, err := blobs.Load(ctx, refreshTokenKey); err != nil {
		p.logger.Warn().Err(err).Msg("failed to load refresh token")
	} else if b != nil {
		p.mem.SetRefreshToken(string(b))
	}
	return p
}

func (p *PersistentTokenStore) AccessToken() string  { return p.mem.AccessToken() }
func (p *PersistentTokenStore) RefreshToken() string { return p.mem.RefreshToken() }

func (p *PersistentTokenStore) SetAccessToken(token string) {
	p.mem.SetAccessToken(token)
	p.write(accessTokenKey, token)
}

func (p *PersistentTokenStore) SetRefreshToken(token string) {
	p.mem.SetRefreshToken(token)
	p.write(refreshTokenKey, token)
}

func (p *PersistentTokenStore) Clear() {
	p.mem.Clear()
	for _, key := range []string{accessTokenKey, refreshTokenKey} {
		if err := p.blobs.Delete(context.Background(), key); err != nil {
			p.logger.Error().Err(err).Str("key", key).Msg("failed to clear token")
		}
	}
}

func (p *PersistentTokenStore) write(key, value string) {
	var err error
	if value == "" {
		err = p.blobs.Delete(context.Background(), key)
	} else {
		err = p.blobs.Save(context.Background(), key, []byte(value))
	}
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("failed to save token")
	}
}
