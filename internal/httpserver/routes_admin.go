package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/busdle/internal/buses"
	"github.com/robalobadob/busdle/internal/daily"
)

// mountAdmin registers template and bank management (admin only).
func (s *Server) mountAdmin() {
	s.r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/template", s.handleGetTemplate)
		r.Put("/template", s.handleSetTemplate)
		r.Delete("/template", s.handleClearTemplate)
		r.Get("/bank", s.handleGetActiveBank)
		r.Put("/bank", s.handleSetActiveBank)
	})
}

type templateReq struct {
	Order   string   `json:"order"` // comma separated, e.g. "5, 10, 5"
	BusBank []string `json:"busBank"`
	Date    string   `json:"date"` // optional, defaults to today
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	t, err := s.daily.Get(r.Context(), date)
	if err != nil {
		log.Error().Err(err).Msg("get template")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if t == nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(t)
}

func (s *Server) handleSetTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}
	t, err := daily.BuildTemplate(req.Date, req.Order, req.BusBank)
	if errors.Is(err, daily.ErrEmptyOrder) {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"invalid_template"}`, http.StatusBadRequest)
		return
	}
	saved, err := s.daily.Save(r.Context(), t)
	if err != nil {
		log.Error().Err(err).Msg("save template")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	log.Info().
		Str("date", saved.Date).
		Int("revision", saved.Revision).
		Int("buses", len(saved.BusOrder)).
		Int("unique", saved.UniqueBusCount).
		Msg("busdle template set")
	_ = json.NewEncoder(w).Encode(saved)
}

func (s *Server) handleClearTemplate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}
	if err := s.daily.Clear(r.Context(), date); err != nil {
		log.Error().Err(err).Msg("clear template")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

type bankReq struct {
	Buses []string `json:"buses"`
}

func (s *Server) handleGetActiveBank(w http.ResponseWriter, r *http.Request) {
	bank, err := s.daily.ActiveBank(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("get active bank")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if bank == nil {
		bank = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"buses": bank, "fallback": s.fallback})
}

func (s *Server) handleSetActiveBank(w http.ResponseWriter, r *http.Request) {
	var req bankReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	var clean []string
	for _, b := range req.Buses {
		if id := buses.CleanBankEntry(b); id != "" {
			clean = append(clean, id)
		}
	}
	clean = buses.Order(clean)
	if err := s.daily.SetActiveBank(r.Context(), clean); err != nil {
		log.Error().Err(err).Msg("set active bank")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"buses": clean})
}
