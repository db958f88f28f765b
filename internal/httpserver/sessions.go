package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/busdle/internal/game"
)

const (
	anonCookieName = "busdle_anon"

	maxSessions    = 10000
	sessionIdleTTL = 30 * time.Minute
)

type session struct {
	m        *game.Machine
	lastSeen time.Time
}

// sessions holds one game.Machine per anonymous client. The registry is
// bounded: once full, idle machines are dropped (and the least recently
// seen one if none is idle). A dropped client is restored from the state
// store on its next request.
type sessions struct {
	mu       sync.Mutex
	states   game.StateStore
	max      int
	idle     time.Duration
	now      func() time.Time
	machines map[string]*session
}

func newSessions(states game.StateStore) *sessions {
	return &sessions{
		states:   states,
		max:      maxSessions,
		idle:     sessionIdleTTL,
		now:      time.Now,
		machines: make(map[string]*session),
	}
}

// get returns the client's machine, creating it on first use. A new machine
// restores from the state store on its first Sync.
func (s *sessions) get(clientID string) *game.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.machines[clientID]; ok {
		e.lastSeen = now
		return e.m
	}
	if len(s.machines) >= s.max {
		s.evict(now)
	}
	m := game.NewMachine(clientID, s.states)
	s.machines[clientID] = &session{m: m, lastSeen: now}
	return m
}

// evict assumes s.mu is held.
func (s *sessions) evict(now time.Time) {
	var oldestID string
	var oldest time.Time
	for id, e := range s.machines {
		if now.Sub(e.lastSeen) > s.idle {
			delete(s.machines, id)
			continue
		}
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID, oldest = id, e.lastSeen
		}
	}
	if len(s.machines) >= s.max && oldestID != "" {
		delete(s.machines, oldestID)
	}
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.machines)
}

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to associate a browser with its game state.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Production,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

func (s *Server) sameSite() http.SameSite {
	if s.cfg.Production {
		return http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	return http.SameSiteLaxMode
}
