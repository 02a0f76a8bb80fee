package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"shotforge/internal/script"
	"shotforge/internal/services"
)

// SessionKey identifies one project episode. At most one checkpoint and one
// live run exist per key.
type SessionKey struct {
	ProjectID string `json:"projectId"`
	EpisodeID string `json:"episodeId"`
}

func (k SessionKey) String() string {
	return k.ProjectID + "/" + k.EpisodeID
}

// Validate ensures both identifiers are present.
func (k SessionKey) Validate() error {
	if strings.TrimSpace(k.ProjectID) == "" || strings.TrimSpace(k.EpisodeID) == "" {
		return services.Wrap(services.ErrValidation, "", "session", "project and episode ids are required", nil)
	}
	return nil
}

// Checkpoint is the persisted progress of an interrupted run. Script seeds the
// stage named by Step; it is only valid for the draft whose config key matches.
type Checkpoint struct {
	Step      Stage              `json:"step"`
	ConfigKey string             `json:"configKey"`
	Script    *script.ScriptData `json:"scriptData"`
	Shots     []script.Shot      `json:"shots,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// CheckpointStore persists one checkpoint per session. Load returns nil with
// no error when nothing is stored.
type CheckpointStore interface {
	Load(ctx context.Context, key SessionKey) (*Checkpoint, error)
	Save(ctx context.Context, key SessionKey, cp Checkpoint) error
	Clear(ctx context.Context, key SessionKey) error
}

// MemoryStore is an in-process CheckpointStore.
type MemoryStore struct {
	mu    sync.Mutex
	items map[SessionKey]Checkpoint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[SessionKey]Checkpoint)}
}

func (m *MemoryStore) Load(ctx context.Context, key SessionKey) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	cp.Script = cp.Script.Clone()
	cp.Shots = script.CloneShots(cp.Shots)
	return &cp, nil
}

func (m *MemoryStore) Save(ctx context.Context, key SessionKey, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cp.Step.Valid() {
		return errors.New("checkpoint: invalid step")
	}
	cp.Script = cp.Script.Clone()
	cp.Shots = script.CloneShots(cp.Shots)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = cp
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key SessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
