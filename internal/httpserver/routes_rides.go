// internal/httpserver/routes_rides.go
//
// Ride log and statistics.
//   - GET    /rides?date=        → a day's rides (default today)
//   - GET    /rides/all          → every day's rides keyed by date
//   - GET    /stats?from=&to=&page=&size= → per-bus counts
// Admin only:
//   - POST   /rides              → log a bus {busNumber}
//   - POST   /rides/light-rail   → log a light-rail line {line: 1|2}
//   - POST   /rides/undo         → remove today's last ride
//   - DELETE /rides/{date}/{index} → remove one ride
//   - DELETE /rides/{date}      → reset a day
//   - DELETE /rides             → clear all rides and templates

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/busdle/internal/rides"
)

// mountRides registers ride log and statistics routes.
func (s *Server) mountRides() {
	s.r.Get("/rides", s.handleDay)
	s.r.Get("/rides/all", s.handleAllRides)
	s.r.Get("/stats", s.handleStats)

	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Post("/rides", s.handleAddRide)
		r.Post("/rides/light-rail", s.handleAddLightRail)
		r.Post("/rides/undo", s.handleUndo)
		r.Delete("/rides/{date}/{index}", s.handleRemoveRide)
		r.Delete("/rides/{date}", s.handleClearDay)
		r.Delete("/rides", s.handleClearAll)
	})
}

type dayRes struct {
	Date    string        `json:"date"`
	Count   int           `json:"count"`
	Entries []rides.Entry `json:"entries"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	entries, err := s.rides.Day(r.Context(), date)
	if err != nil {
		log.Error().Err(err).Str("date", date).Msg("list rides")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(dayRes{Date: date, Count: len(entries), Entries: entries})
}

func (s *Server) handleAllRides(w http.ResponseWriter, r *http.Request) {
	all, err := s.rides.All(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list all rides")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(all)
}

type statsRes struct {
	rides.Page
	TotalRides  int `json:"totalRides"`
	UniqueBuses int `json:"uniqueBuses"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	sum, err := s.rides.Stats(r.Context(), rides.Range{From: q.Get("from"), To: q.Get("to")})
	if err != nil {
		log.Error().Err(err).Msg("ride stats")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(statsRes{
		Page:        sum.Page(page, size),
		TotalRides:  sum.TotalRides,
		UniqueBuses: sum.UniqueBuses,
	})
}

type addRideReq struct {
	BusNumber string `json:"busNumber"`
	Date      string `json:"date"` // optional, defaults to today
}

func (s *Server) handleAddRide(w http.ResponseWriter, r *http.Request) {
	var req addRideReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}
	e, err := s.rides.Add(r.Context(), req.Date, req.BusNumber)
	s.writeRide(w, req.Date, e, err)
}

type lightRailReq struct {
	Line int    `json:"line"`
	Date string `json:"date"`
}

func (s *Server) handleAddLightRail(w http.ResponseWriter, r *http.Request) {
	var req lightRailReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}
	e, err := s.rides.AddLightRail(r.Context(), req.Date, req.Line)
	s.writeRide(w, req.Date, e, err)
}

func (s *Server) writeRide(w http.ResponseWriter, date string, e rides.Entry, err error) {
	switch {
	case errors.Is(err, rides.ErrInvalidBus), errors.Is(err, rides.ErrInvalidLine):
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	case err != nil:
		log.Error().Err(err).Str("date", date).Msg("add ride")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	s.metrics.rides.Inc()
	log.Info().Str("date", date).Str("bus", e.BusNumber).Msg("ride logged")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(e)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	date := s.today()
	e, err := s.rides.Undo(r.Context(), date)
	if errors.Is(err, rides.ErrEmpty) {
		http.Error(w, `{"error":"No buses to undo for today."}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("undo ride")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(e)
}

func (s *Server) handleRemoveRide(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, `{"error":"invalid_index"}`, http.StatusBadRequest)
		return
	}
	e, err := s.rides.Remove(r.Context(), date, idx)
	if errors.Is(err, rides.ErrNotFound) {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("remove ride")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(e)
}

func (s *Server) handleClearDay(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := s.rides.ClearDay(r.Context(), date); err != nil {
		log.Error().Err(err).Msg("clear day")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.rides.ClearAll(r.Context()); err != nil {
		log.Error().Err(err).Msg("clear rides")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if err := s.daily.ClearAll(r.Context()); err != nil {
		log.Error().Err(err).Msg("clear templates")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	log.Info().Msg("all bus data cleared")
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
