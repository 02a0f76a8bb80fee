package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shotforge/internal/pipeline"
	"shotforge/internal/script"
)

// Store is a pipeline.CheckpointStore backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ pipeline.CheckpointStore = (*Store)(nil)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open creates or connects to the checkpoint database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the session's checkpoint, or nil when none is stored.
func (s *Store) Load(ctx context.Context, key pipeline.SessionKey) (*pipeline.Checkpoint, error) {
	var (
		step, configKey, updatedAt string
		scriptJSON, shotsJSON      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT step, config_key, script_json, shots_json, updated_at
		 FROM checkpoints WHERE project_id = ? AND episode_id = ?`,
		key.ProjectID, key.EpisodeID,
	).Scan(&step, &configKey, &scriptJSON, &shotsJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", key, err)
	}

	cp := &pipeline.Checkpoint{Step: pipeline.Stage(step), ConfigKey: configKey}
	if scriptJSON.Valid && scriptJSON.String != "" {
		var data script.ScriptData
		if err := json.Unmarshal([]byte(scriptJSON.String), &data); err != nil {
			return nil, fmt.Errorf("decode checkpoint script %s: %w", key, err)
		}
		cp.Script = &data
	}
	if shotsJSON.Valid && shotsJSON.String != "" {
		if err := json.Unmarshal([]byte(shotsJSON.String), &cp.Shots); err != nil {
			return nil, fmt.Errorf("decode checkpoint shots %s: %w", key, err)
		}
	}
	if updatedAt != "" {
		if parsed, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
			cp.UpdatedAt = parsed
		}
	}
	return cp, nil
}

// Save overwrites the session's checkpoint.
func (s *Store) Save(ctx context.Context, key pipeline.SessionKey, cp pipeline.Checkpoint) error {
	if !cp.Step.Valid() {
		return fmt.Errorf("save checkpoint %s: invalid step %q", key, cp.Step)
	}
	scriptJSON, err := encodeNullable(cp.Script != nil, cp.Script)
	if err != nil {
		return fmt.Errorf("encode checkpoint script: %w", err)
	}
	shotsJSON, err := encodeNullable(cp.Shots != nil, cp.Shots)
	if err != nil {
		return fmt.Errorf("encode checkpoint shots: %w", err)
	}
	updatedAt := cp.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	err = s.exec(ctx,
		`INSERT INTO checkpoints (project_id, episode_id, step, config_key, script_json, shots_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, episode_id) DO UPDATE SET
		   step = excluded.step,
		   config_key = excluded.config_key,
		   script_json = excluded.script_json,
		   shots_json = excluded.shots_json,
		   updated_at = excluded.updated_at`,
		key.ProjectID, key.EpisodeID, string(cp.Step), cp.ConfigKey, scriptJSON, shotsJSON,
		updatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", key, err)
	}
	return nil
}

// Clear removes the session's checkpoint. Clearing a missing checkpoint is
// not an error.
func (s *Store) Clear(ctx context.Context, key pipeline.SessionKey) error {
	if err := s.exec(ctx,
		"DELETE FROM checkpoints WHERE project_id = ? AND episode_id = ?",
		key.ProjectID, key.EpisodeID,
	); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", key, err)
	}
	return nil
}

// Summary describes one stored checkpoint without decoding its payload.
type Summary struct {
	Session   pipeline.SessionKey
	Step      pipeline.Stage
	ConfigKey string
	UpdatedAt time.Time
}

// List returns every stored checkpoint ordered by session.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, episode_id, step, config_key, updated_at
		 FROM checkpoints ORDER BY project_id, episode_id`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			item      Summary
			step      string
			updatedAt string
		)
		if err := rows.Scan(&item.Session.ProjectID, &item.Session.EpisodeID, &step, &item.ConfigKey, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		item.Step = pipeline.Stage(step)
		if parsed, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
			item.UpdatedAt = parsed
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func encodeNullable(present bool, v any) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
