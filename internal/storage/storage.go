package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/inferno-games/quantum-salvation/pkg/cinematic"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
	"github.com/inferno-games/quantum-salvation/pkg/story"
)

// ErrNotFound is returned when a session id has no stored record.
var ErrNotFound = errors.New("session not found")

// SessionRecord is the persisted form of one player session: the story
// engine snapshot plus mission tracker progress. Catalog content is static
// and never persisted with the session.
type SessionRecord struct {
	ID        uuid.UUID         `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Story     *story.Snapshot   `json:"story"`
	Missions  *mission.Snapshot `json:"missions,omitempty"`
}

// Catalog is the static campaign content loaded from the data directory.
type Catalog struct {
	Missions   map[mission.ID]mission.Mission
	Cinematics map[cinematic.ID]cinematic.Cinematic
	Chapters   []story.Chapter
	Endings    []story.Ending // empty means the built-in ending table applies
}

// Chapter looks up a chapter definition by id.
func (c *Catalog) Chapter(id story.ChapterID) (story.Chapter, bool) {
	for _, ch := range c.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return story.Chapter{}, false
}

// Storage combines session persistence (Redis) with campaign content
// loading (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations (Redis-backed)
	SaveSession(ctx context.Context, id uuid.UUID, rec *SessionRecord) error
	LoadSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// Campaign content (filesystem-backed)
	LoadCatalog(ctx context.Context) (*Catalog, error)
}
