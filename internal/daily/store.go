package daily

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

// Save stores t under t.Date, bumping the day's revision. The saved
// template (with revision and timestamp) is returned.
func (s *Store) Save(ctx context.Context, t Template) (Template, error) {
	order, err := json.Marshal(t.BusOrder)
	if err != nil {
		return Template{}, err
	}
	bank := t.BusBank
	if bank == nil {
		bank = []string{}
	}
	bankJSON, err := json.Marshal(bank)
	if err != nil {
		return Template{}, err
	}
	t.UpdatedAt = s.now().UTC()

	err = s.db.QueryRowContext(ctx, `
        INSERT INTO busdle_templates (date, revision, bus_order, unique_count, bus_bank, deleted, updated_at)
        VALUES (?, 1, ?, ?, ?, 0, ?)
        ON CONFLICT(date) DO UPDATE SET
            revision     = busdle_templates.revision + 1,
            bus_order    = excluded.bus_order,
            unique_count = excluded.unique_count,
            bus_bank     = excluded.bus_bank,
            deleted      = 0,
            updated_at   = excluded.updated_at
        RETURNING revision`,
		t.Date, string(order), t.UniqueBusCount, string(bankJSON), t.UpdatedAt.Format(time.RFC3339),
	).Scan(&t.Revision)
	if err != nil {
		return Template{}, err
	}
	return t, nil
}

// Get returns date's template, or nil if none is set or it was cleared.
func (s *Store) Get(ctx context.Context, date string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT date, revision, bus_order, unique_count, bus_bank, updated_at
        FROM busdle_templates WHERE date=? AND deleted=0`, date)
	return scanTemplate(row)
}

// Current returns the most recent live template, or nil.
func (s *Store) Current(ctx context.Context) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT date, revision, bus_order, unique_count, bus_bank, updated_at
        FROM busdle_templates WHERE deleted=0
        ORDER BY date DESC LIMIT 1`)
	return scanTemplate(row)
}

// Clear marks date's template deleted. The revision still advances so a
// later Save for the same day never reuses an old target ID.
func (s *Store) Clear(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE busdle_templates SET deleted=1, revision=revision+1, updated_at=?
        WHERE date=?`, s.now().UTC().Format(time.RFC3339), date)
	return err
}

// ClearAll marks every template deleted. Rows are kept, like Clear, so
// revisions keep counting and a re-set day gets a new target ID.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE busdle_templates SET deleted=1, revision=revision+1, updated_at=?
        WHERE deleted=0`, s.now().UTC().Format(time.RFC3339))
	return err
}

// SetActiveBank replaces the admin-selected fallback bank.
func (s *Store) SetActiveBank(ctx context.Context, bank []string) error {
	if bank == nil {
		bank = []string{}
	}
	b, err := json.Marshal(bank)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO bus_bank (id, buses, updated_at) VALUES (1, ?, ?)
        ON CONFLICT(id) DO UPDATE SET buses=excluded.buses, updated_at=excluded.updated_at`,
		string(b), s.now().UTC().Format(time.RFC3339))
	return err
}

// ActiveBank returns the admin-selected bank, or nil if never set.
func (s *Store) ActiveBank(ctx context.Context) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT buses FROM bus_bank WHERE id=1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func scanTemplate(row *sql.Row) (*Template, error) {
	var t Template
	var order, bank, updated string
	err := row.Scan(&t.Date, &t.Revision, &order, &t.UniqueBusCount, &bank, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(order), &t.BusOrder); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(bank), &t.BusBank); err != nil {
		return nil, err
	}
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &t, nil
}
