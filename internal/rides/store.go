// internal/rides/store.go
//
// SQLite-backed ride log. Each day holds an ordered list of boarded buses;
// position is dense within a day so "undo" and "remove by index" behave
// like operations on a list.

package rides

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/busdle/internal/buses"
)

var (
	ErrEmpty       = errors.New("no rides logged for this day")
	ErrNotFound    = errors.New("ride not found")
	ErrInvalidBus  = errors.New("bus number is required")
	ErrInvalidLine = errors.New("light rail line must be 1 or 2")
)

// Entry is one logged ride.
type Entry struct {
	ID        string    `json:"id"`
	BusNumber string    `json:"busNumber"`
	Timestamp time.Time `json:"timestamp"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

// Add normalises bus and appends it to date's log.
func (s *Store) Add(ctx context.Context, date, bus string) (Entry, error) {
	id := buses.Normalize(bus)
	if id == "" {
		return Entry{}, ErrInvalidBus
	}
	return s.append(ctx, date, id)
}

// AddLightRail appends "Line 1" or "Line 2" to date's log.
func (s *Store) AddLightRail(ctx context.Context, date string, line int) (Entry, error) {
	id, ok := buses.LightRail(line)
	if !ok {
		return Entry{}, ErrInvalidLine
	}
	return s.append(ctx, date, id)
}

func (s *Store) append(ctx context.Context, date, bus string) (Entry, error) {
	e := Entry{ID: uuid.NewString(), BusNumber: bus, Timestamp: s.now().UTC()}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO rides (id, date, position, bus_number, ridden_at)
        VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM rides WHERE date=?), ?, ?)`,
		e.ID, date, date, e.BusNumber, e.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert ride: %w", err)
	}
	return e, nil
}

// Day lists date's rides in logged order.
func (s *Store) Day(ctx context.Context, date string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bus_number, ridden_at FROM rides WHERE date=? ORDER BY position ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// All returns every day's rides keyed by date.
func (s *Store) All(ctx context.Context) (map[string][]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, id, bus_number, ridden_at FROM rides ORDER BY date ASC, position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]Entry{}
	for rows.Next() {
		var date, ts string
		var e Entry
		if err := rows.Scan(&date, &e.ID, &e.BusNumber, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		out[date] = append(out[date], e)
	}
	return out, rows.Err()
}

// Undo removes and returns the most recent ride of date.
func (s *Store) Undo(ctx context.Context, date string) (Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, bus_number, ridden_at FROM rides WHERE date=? ORDER BY position DESC LIMIT 1`, date)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrEmpty
	}
	if err != nil {
		return Entry{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rides WHERE id=?`, e.ID); err != nil {
		return Entry{}, err
	}
	return e, tx.Commit()
}

// Remove deletes the index-th ride (0-based) of date and closes the gap.
func (s *Store) Remove(ctx context.Context, date string, index int) (Entry, error) {
	if index < 0 {
		return Entry{}, ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
        SELECT id, bus_number, ridden_at FROM rides
        WHERE date=? ORDER BY position ASC LIMIT 1 OFFSET ?`, date, index)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	// Re-number the remaining rides so positions stay dense.
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM rides WHERE date=? AND id<>? ORDER BY position ASC`, date, e.ID)
	if err != nil {
		return Entry{}, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return Entry{}, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Entry{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rides WHERE id=?`, e.ID); err != nil {
		return Entry{}, err
	}
	// Negative staging avoids tripping UNIQUE(date, position) mid-update.
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE rides SET position=? WHERE id=?`, -(i + 1), id); err != nil {
			return Entry{}, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rides SET position=-position-1 WHERE date=?`, date); err != nil {
		return Entry{}, err
	}
	return e, tx.Commit()
}

// ClearDay removes every ride of date.
func (s *Store) ClearDay(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rides WHERE date=?`, date)
	return err
}

// ClearAll removes every ride.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rides`)
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var ts string
	if err := sc.Scan(&e.ID, &e.BusNumber, &ts); err != nil {
		return Entry{}, err
	}
	e.Timestamp = parseTime(ts)
	return e, nil
}

// parseTime parses RFC3339 timestamps; on error returns zero time.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
