package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tbxark/formfiller/types"
)

const sqliteSchemaVersion = 1

// SqliteConfig defines SQLite operational parameters.
type SqliteConfig struct {
	Path         string        `yaml:"path"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// SqliteStore keeps one JSON document per session in a single table.
// Locks are process local.
type SqliteStore struct {
	DB    *sql.DB
	locks *keyedLocker
}

// OpenSqliteStore opens the database with WAL enabled and migrates it.
func OpenSqliteStore(cfg SqliteConfig) (*SqliteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 8
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &SqliteStore{DB: db, locks: newKeyedLocker()}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var current int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at_ms INTEGER NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at_ms);
	`); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Get(ctx context.Context, id string) (*types.SessionState, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, "SELECT payload FROM sessions WHERE session_id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("sqlite select", err)
	}
	return decodeState([]byte(payload))
}

func (s *SqliteStore) Put(ctx context.Context, state *types.SessionState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO sessions (session_id, status, payload, created_at_ms, updated_at_ms)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		status = excluded.status,
		payload = excluded.payload,
		updated_at_ms = excluded.updated_at_ms`,
		state.SessionID, string(state.Status), string(data),
		state.CreatedAt.UnixMilli(), state.UpdatedAt.UnixMilli())
	if err != nil {
		return unavailable("sqlite upsert", err)
	}
	return nil
}

func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id)
	if err != nil {
		return unavailable("sqlite delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("sqlite delete", err)
	}
	if n == 0 {
		return types.ErrSessionNotFound
	}
	return nil
}

func (s *SqliteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT session_id FROM sessions ORDER BY session_id")
	if err != nil {
		return nil, unavailable("sqlite list", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("sqlite list", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("sqlite list", err)
	}
	return ids, nil
}

func (s *SqliteStore) Lock(ctx context.Context, id string) (func(), error) {
	return s.locks.Lock(ctx, id)
}

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
