package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*SessionRecord
	catalog   *Catalog
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage with an empty catalog
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]*SessionRecord),
		catalog: &Catalog{
			Missions:   make(map[mission.ID]mission.Mission),
			Cinematics: make(map[cinematic.ID]cinematic.Cinematic),
		},
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on SaveSession
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetCatalog replaces the catalog returned by LoadCatalog
func (m *MockStorage) SetCatalog(cat *Catalog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = cat
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error { return nil }

func (m *MockStorage) SaveSession(ctx context.Context, id uuid.UUID, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	rec.ID = id
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}
	m.sessions[id] = rec
	return nil
}

func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockStorage) LoadCatalog(ctx context.Context) (*Catalog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog, nil
}
