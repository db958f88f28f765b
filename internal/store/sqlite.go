package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/robalobadob/busdle/internal/game"
)

// sqliteStore keeps game state in the game_states table.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore constructs a StateStore over a migrated database.
func NewSQLiteStore(db *sql.DB) game.StateStore {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Save(ctx context.Context, key string, st game.State) error {
	b, err := encode(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO game_states (client_key, target_id, state, updated_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(client_key) DO UPDATE SET
            target_id=excluded.target_id, state=excluded.state, updated_at=excluded.updated_at`,
		key, st.TargetID, string(b), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *sqliteStore) Load(ctx context.Context, key string) (*game.State, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM game_states WHERE client_key=?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(raw))
}
