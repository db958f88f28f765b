// internal/httpserver/routes_busdle.go
//
// HTTP routes for the Busdle game, all under /busdle:
//   - GET  /busdle         → current game view for this browser
//   - POST /busdle/guess   → submit an ordered guess
//   - POST /busdle/reset   → clear history for the current target
//   - POST /busdle/mode    → switch free/assisted (before the first guess)
//   - PUT  /busdle/pending → save half-entered input
//   - GET  /busdle/bank    → bus bank in display order
//   - GET  /busdle/share   → emoji summary (text/plain)
//
// Every request first syncs the browser's machine with the current template,
// so a new day's target discards yesterday's progress.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/busdle/internal/daily"
	"github.com/robalobadob/busdle/internal/game"
)

// mountBusdle registers all /busdle routes.
func (s *Server) mountBusdle() {
	s.r.Route("/busdle", func(r chi.Router) {
		r.Get("/", s.handleState)
		r.Post("/guess", s.handleGuess)
		r.Post("/reset", s.handleReset)
		r.Post("/mode", s.handleMode)
		r.Put("/pending", s.handlePending)
		r.Get("/bank", s.handleBank)
		r.Get("/share", s.handleShare)
	})
}

// busdleCtx is the per-request view of the game.
type busdleCtx struct {
	m    *game.Machine
	tmpl *daily.Template // nil when no busdle is set
}

// load resolves the browser's machine and syncs it with the current template.
// A template lookup failure is logged and treated as "no busdle".
func (s *Server) load(w http.ResponseWriter, r *http.Request) busdleCtx {
	ctx := r.Context()
	m := s.sessions.get(s.ensureAnonID(w, r))

	tmpl, err := s.daily.Current(ctx)
	if err != nil {
		log.Error().Err(err).Msg("load current template")
		tmpl = nil
	}
	if tmpl == nil {
		m.Sync(ctx, nil)
		return busdleCtx{m: m}
	}

	active, err := s.daily.ActiveBank(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load active bus bank")
	}
	bank := daily.EffectiveBank(*tmpl, active, s.fallback)
	m.Sync(ctx, tmpl.Target(bank))
	return busdleCtx{m: m, tmpl: tmpl}
}

// stateRes is returned by GET /busdle and the mutating endpoints.
type stateRes struct {
	Available      bool          `json:"available"`
	TargetID       string        `json:"targetId,omitempty"`
	Date           string        `json:"date,omitempty"`
	Length         int           `json:"length"`
	UniqueBusCount int           `json:"uniqueBusCount"`
	Mode           game.Mode     `json:"mode"`
	History        []game.Record `json:"history"`
	PendingInput   []string      `json:"pendingInput"`
	GameWon        bool          `json:"gameWon"`
}

func (bc busdleCtx) view() stateRes {
	st := bc.m.Snapshot()
	res := stateRes{
		Mode:         st.Mode,
		History:      st.History,
		PendingInput: st.PendingInput,
		GameWon:      st.GameWon,
	}
	if bc.tmpl != nil {
		res.Available = true
		res.TargetID = bc.tmpl.TargetID()
		res.Date = bc.tmpl.Date
		res.Length = len(bc.tmpl.BusOrder)
		res.UniqueBusCount = bc.tmpl.UniqueBusCount
	}
	return res
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.load(w, r).view())
}

// guessReq is the request payload for /busdle/guess.
type guessReq struct {
	Buses []string `json:"buses"`
}

// guessRes is the response payload for /busdle/guess.
type guessRes struct {
	Record  game.Record `json:"record"`
	GameWon bool        `json:"gameWon"`
	Guesses int         `json:"guesses"`
}

// handleGuess validates and applies a guess for this browser's game.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	bc := s.load(w, r)
	rec, err := bc.m.Submit(r.Context(), req.Buses)
	if err != nil {
		s.metrics.rejected.WithLabelValues(reasonOf(err)).Inc()
		writeGameError(w, err)
		return
	}
	outcome := "miss"
	if rec.Won() {
		outcome = "won"
	}
	s.metrics.guesses.WithLabelValues(outcome).Inc()

	st := bc.m.Snapshot()
	_ = json.NewEncoder(w).Encode(guessRes{
		Record:  rec,
		GameWon: rec.Won(),
		Guesses: len(st.History),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	bc := s.load(w, r)
	bc.m.Reset(r.Context())
	_ = json.NewEncoder(w).Encode(bc.view())
}

type modeReq struct {
	Mode game.Mode `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	bc := s.load(w, r)
	if err := bc.m.SetMode(r.Context(), req.Mode); err != nil {
		writeGameError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(bc.view())
}

type pendingReq struct {
	Inputs []string `json:"inputs"`
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	var req pendingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	bc := s.load(w, r)
	bc.m.SetPending(r.Context(), req.Inputs)
	w.WriteHeader(http.StatusNoContent)
}

// handleBank returns the effective bus bank for the picker keyboard.
func (s *Server) handleBank(w http.ResponseWriter, r *http.Request) {
	bc := s.load(w, r)
	bank := bc.m.BusBank()
	if bank == nil {
		bank = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"buses": bank})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	bc := s.load(w, r)
	if bc.tmpl == nil {
		writeGameError(w, game.ErrNoTarget)
		return
	}
	st := bc.m.Snapshot()
	if len(st.History) == 0 {
		http.Error(w, `{"error":"nothing_to_share"}`, http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(game.ShareText(st.History, bc.tmpl.Date, st.Mode)))
}

// writeGameError maps game errors to HTTP responses.
func writeGameError(w http.ResponseWriter, err error) {
	var unknown *game.UnknownIdentifierError
	switch {
	case errors.As(err, &unknown):
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "unknown_identifier",
			"invalid": unknown.Invalid,
		})
	case errors.Is(err, game.ErrIncompleteGuess):
		http.Error(w, `{"error":"incomplete_guess"}`, http.StatusBadRequest)
	case errors.Is(err, game.ErrInvalidMode):
		http.Error(w, `{"error":"invalid_mode"}`, http.StatusBadRequest)
	case errors.Is(err, game.ErrNoTarget):
		http.Error(w, `{"error":"no_target"}`, http.StatusNotFound)
	case errors.Is(err, game.ErrGameWon):
		http.Error(w, `{"error":"game_won"}`, http.StatusConflict)
	case errors.Is(err, game.ErrSubmitInFlight):
		http.Error(w, `{"error":"submit_in_flight"}`, http.StatusConflict)
	case errors.Is(err, game.ErrModeLocked):
		http.Error(w, `{"error":"mode_locked"}`, http.StatusConflict)
	default:
		log.Error().Err(err).Msg("busdle request")
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
	}
}

// reasonOf labels a rejected guess for metrics.
func reasonOf(err error) string {
	switch {
	case errors.Is(err, game.ErrUnknownIdentifier):
		return "unknown_identifier"
	case errors.Is(err, game.ErrIncompleteGuess):
		return "incomplete"
	case errors.Is(err, game.ErrGameWon):
		return "won"
	case errors.Is(err, game.ErrSubmitInFlight):
		return "in_flight"
	case errors.Is(err, game.ErrNoTarget):
		return "no_target"
	default:
		return "other"
	}
}
