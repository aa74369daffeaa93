package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store keeps dashboard session entries in the dashboard_kv table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const (
	getSQL = `SELECT value FROM dashboard_kv WHERE session_id = $1 AND key = $2`

	upsertSQL = `INSERT INTO dashboard_kv (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	listSessionsSQL = `SELECT session_id, COUNT(*), MAX(updated_at)
		FROM dashboard_kv
		GROUP BY session_id
		ORDER BY MAX(updated_at) DESC
		LIMIT $1`

	deleteStaleSQL = `DELETE FROM dashboard_kv WHERE session_id IN (
		SELECT session_id FROM dashboard_kv GROUP BY session_id HAVING MAX(updated_at) < $1)`
)

// Get returns the raw value stored for key in session. ok is false when no
// row exists.
func (s *Store) Get(ctx context.Context, session uuid.UUID, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, getSQL, session, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Put upserts the value of key in session. value must be valid JSON.
func (s *Store) Put(ctx context.Context, session uuid.UUID, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, session, key, string(value)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// SessionInfo summarises the stored entries of one session.
type SessionInfo struct {
	ID        uuid.UUID `json:"id"`
	Entries   int       `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSessions returns the most recently updated sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Entries, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// PruneSessions deletes every session untouched since before.
func (s *Store) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteStaleSQL, before)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Session binds the store to one session id. The result satisfies the
// dashboard state Persister interface.
func (s *Store) Session(id uuid.UUID) *SessionKV {
	return &SessionKV{store: s, id: id}
}

// SessionKV is a Store scoped to a single session.
type SessionKV struct {
	store *Store
	id    uuid.UUID
}

func (k *SessionKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return k.store.Get(ctx, k.id, key)
}

func (k *SessionKV) Put(ctx context.Context, key string, value []byte) error {
	return k.store.Put(ctx, k.id, key, value)
}
