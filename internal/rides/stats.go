package rides

import (
	"context"
	"sort"

	"github.com/robalobadob/busdle/internal/buses"
)

const defaultPageSize = 10

// Range is an inclusive YYYY-MM-DD date window; empty bounds are open.
type Range struct {
	From string
	To   string
}

// BusCount is one row of the ride statistics.
type BusCount struct {
	Bus   string `json:"bus"`
	Count int    `json:"count"`
}

// Summary aggregates rides over a Range.
type Summary struct {
	Buses       []BusCount `json:"buses"` // count desc, then display order
	TotalRides  int        `json:"totalRides"`
	UniqueBuses int        `json:"uniqueBuses"`
}

// Page is a slice of a Summary's bus counts.
type Page struct {
	Buses      []BusCount `json:"buses"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	MaxCount   int        `json:"maxCount"`
}

// Stats counts rides per bus within r.
func (s *Store) Stats(ctx context.Context, r Range) (Summary, error) {
	q := `SELECT bus_number, COUNT(1) FROM rides WHERE 1=1`
	var args []any
	if r.From != "" {
		q += ` AND date >= ?`
		args = append(args, r.From)
	}
	if r.To != "" {
		q += ` AND date <= ?`
		args = append(args, r.To)
	}
	q += ` GROUP BY bus_number`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	sum := Summary{Buses: []BusCount{}}
	for rows.Next() {
		var bc BusCount
		if err := rows.Scan(&bc.Bus, &bc.Count); err != nil {
			return Summary{}, err
		}
		sum.Buses = append(sum.Buses, bc)
		sum.TotalRides += bc.Count
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	sum.UniqueBuses = len(sum.Buses)

	sort.SliceStable(sum.Buses, func(i, j int) bool {
		a, b := sum.Buses[i], sum.Buses[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return buses.Compare(a.Bus, b.Bus) < 0
	})
	return sum, nil
}

// Page returns the page-th (0-based) slice of size rows. Out-of-range pages
// are clamped.
func (s Summary) Page(page, size int) Page {
	if size <= 0 {
		size = defaultPageSize
	}
	total := (len(s.Buses) + size - 1) / size
	if page >= total {
		page = total - 1
	}
	if page < 0 {
		page = 0
	}
	p := Page{Buses: []BusCount{}, Page: page, TotalPages: total}
	if len(s.Buses) > 0 {
		p.MaxCount = s.Buses[0].Count
	}
	start := page * size
	if start >= len(s.Buses) {
		return p
	}
	end := start + size
	if end > len(s.Buses) {
		end = len(s.Buses)
	}
	p.Buses = append(p.Buses, s.Buses[start:end]...)
	return p
}
