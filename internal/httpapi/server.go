// Package httpapi serves a small admin surface over a querycache client:
// health, a view of the stored entries and manual invalidation.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
)

const maxBodyBytes = 1 << 20

// StateEntry describes one stored key.
type StateEntry struct {
	Key       string    `json:"key"`
	WrittenAt time.Time `json:"written_at"`
	AgeMillis int64     `json:"age_ms"`
}

// InvalidateResponse lists the keys a prefix invalidation reached.
type InvalidateResponse struct {
	Keys []string `json:"keys"`
}

// Server is the admin HTTP surface over a query client. Mount Router to serve it.
type Server struct {
	Router chi.Router
	client *querycache.Client
}

// New builds the admin router for client. Requests are logged with logger.
func New(client *querycache.Client, logger zerolog.Logger) *Server {
	s := &Server{client: client}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("querycache admin request")
	}))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Delete("/state/{key}", s.handleEvict)
	r.Get("/invalidations", s.handlePending)
	r.Post("/invalidate", s.handleInvalidate)

	s.Router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	store, err := s.client.Store()
	if err != nil {
		writeError(w, r, err)
		return
	}

	state := store.GetState()
	now := s.client.Clock().Now()
	entries := make([]StateEntry, 0, len(state))
	for _, key := range state.Keys() {
		e := StateEntry{Key: key}
		if entry, ok := cache.Lookup(state, key); ok {
			e.WrittenAt = entry.WrittenAt
			e.AgeMillis = entry.Age(now).Milliseconds()
		}
		entries = append(entries, e)
	}
	writeJSON(w, r, http.StatusOK, entries)
}

// handleEvict drops a raw key without flagging it, so observers of the key
// only refetch on their next read.
func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	store, err := s.client.Store()
	if err != nil {
		writeError(w, r, err)
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	cache.Evict(store, key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, InvalidateResponse{Keys: s.client.PendingInvalidations()})
}

// handleInvalidate reads a key tuple such as ["users", {"page": 1}]. With
// ?prefix=true every key starting with the tuple is invalidated and the keys
// are returned.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var tuple []any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&tuple); err != nil {
		http.Error(w, "body must be a JSON array", http.StatusBadRequest)
		return
	}
	for i := range tuple {
		tuple[i] = normalize(tuple[i])
	}

	if r.URL.Query().Get("prefix") == "true" {
		keys, err := s.client.InvalidatePrefix(tuple...)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, InvalidateResponse{Keys: keys})
		return
	}

	if err := s.client.Invalidate(tuple...); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// normalize turns integral JSON numbers back into ints so keys built over HTTP
// match keys built in code.
func normalize(v any) any {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int(t)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, querycache.ErrNotInitialized):
		status = http.StatusServiceUnavailable
	case errors.Is(err, cache.ErrEmptyKey), errors.Is(err, cache.ErrInvalidKey):
		status = http.StatusBadRequest
	}
	hlog.FromRequest(r).Warn().Err(err).Int("status", status).Msg("querycache admin request failed")
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("querycache admin response encoding failed")
	}
}
