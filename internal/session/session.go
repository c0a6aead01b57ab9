// Package session owns the lifetime of player sessions: each session gets
// its own event bus, story engine, mission tracker, and cinematic sequencer,
// and is persisted through the storage layer as a snapshot record.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inferno-games/quantum-salvation/internal/broadcast"
	"github.com/inferno-games/quantum-salvation/internal/storage"
	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/events"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// Session bundles the per-player narrative runtime. Components share one
// bus, so mission triggers and cinematic completions land in the same step
// that caused them.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	Bus       *events.Bus
	Engine    *story.Engine
	Tracker   *mission.Tracker
	Sequencer *cinematic.Sequencer

	catalog *storage.Catalog
	detach  func()
}

// Tick advances the session's simulation clock.
func (s *Session) Tick(deltaSeconds float64) {
	s.Engine.Update(deltaSeconds)
}

// CompleteChapter finishes a catalog chapter, applies its progress value,
// moves to the declared next chapter, and plays that chapter's opening
// cinematic when it has one.
func (s *Session) CompleteChapter(id story.ChapterID) error {
	ch, ok := s.catalog.Chapter(id)
	if !ok {
		return fmt.Errorf("unknown chapter %s", id)
	}
	if !s.Engine.CompleteChapter(ch.ID, ch.ProgressValue) {
		return fmt.Errorf("chapter %s already completed", id)
	}
	if ch.Next == "" {
		return nil
	}
	s.Engine.SetChapter(ch.Next)
	if next, ok := s.catalog.Chapter(ch.Next); ok && next.Cinematic != "" {
		s.Sequencer.Play(cinematic.ID(next.Cinematic))
	}
	return nil
}

func (s *Session) close() {
	if s.detach != nil {
		s.detach()
	}
	s.Sequencer.Close()
	s.Tracker.Close()
}

// Manager creates, caches, restores, and persists sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	store       storage.Storage
	catalog     *storage.Catalog
	broadcaster *broadcast.Broadcaster // nil disables mirroring
	engineCfg   story.Config
	log         *slog.Logger
}

// NewManager builds a session manager. engineCfg supplies the campaign
// clock tuning; the catalog's ending table, when present, overrides the
// built-in one.
func NewManager(store storage.Storage, catalog *storage.Catalog, bc *broadcast.Broadcaster, engineCfg story.Config, log *slog.Logger) *Manager {
	if len(catalog.Endings) > 0 {
		engineCfg.Endings = catalog.Endings
	}
	return &Manager{
		sessions:    make(map[uuid.UUID]*Session),
		store:       store,
		catalog:     catalog,
		broadcaster: bc,
		engineCfg:   engineCfg,
		log:         log,
	}
}

// build assembles the runtime components for a session id.
func (m *Manager) build(id uuid.UUID) *Session {
	bus := events.NewBus()
	log := m.log.With("session_id", id.String())
	engine := story.NewEngine(m.engineCfg, bus, log)

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		Bus:       bus,
		Engine:    engine,
		Tracker:   mission.NewTracker(engine, m.catalog.Missions, log),
		Sequencer: cinematic.NewSequencer(engine, m.catalog.Cinematics, log),
		catalog:   m.catalog,
	}
	if m.broadcaster != nil {
		s.detach = m.broadcaster.Attach(id, bus)
	}
	return s
}

// Create starts a fresh session, plays the opening chapter's cinematic, and
// persists the initial record.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.New()
	s := m.build(id)

	if opening, ok := m.catalog.Chapter(s.Engine.State().CurrentChapter); ok && opening.Cinematic != "" {
		s.Sequencer.Play(cinematic.ID(opening.Cinematic))
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if err := m.Save(ctx, s); err != nil {
		m.Evict(id)
		return nil, err
	}
	m.log.Info("session created", "session_id", id)
	return s, nil
}

// Get returns a cached session, or restores one from storage.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	rec, err := m.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s = m.build(id)
	s.CreatedAt = rec.CreatedAt
	if err := s.Engine.Restore(rec.Story); err != nil {
		s.close()
		return nil, fmt.Errorf("restore story state: %w", err)
	}
	if rec.Missions != nil {
		if err := s.Tracker.Restore(rec.Missions); err != nil {
			s.close()
			return nil, fmt.Errorf("restore mission state: %w", err)
		}
	}

	m.mu.Lock()
	if cached, raced := m.sessions[id]; raced {
		m.mu.Unlock()
		s.close()
		return cached, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.Info("session restored", "session_id", id)
	return s, nil
}

// Save persists the session's current snapshots.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	rec := &storage.SessionRecord{
		CreatedAt: s.CreatedAt,
		Story:     s.Engine.Snapshot(),
		Missions:  s.Tracker.Snapshot(),
	}
	if err := m.store.SaveSession(ctx, s.ID, rec); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a session from the cache and storage.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.Evict(id)
	return m.store.DeleteSession(ctx, id)
}

// Evict drops a session from the in-memory cache without touching storage.
func (m *Manager) Evict(id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
}

// Close evicts every cached session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
