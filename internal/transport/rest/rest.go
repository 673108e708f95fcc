// Package rest implements the REST/JSON transport adapter (spec.md §4.8,
// §6.1, C10). Grounded on the teacher's net/http + http.ServeMux wiring in
// internal/mcp/server.go's HTTP mode, with request correlation ids (via
// google/uuid, carried for REST error bodies per SPEC_FULL.md §11) and
// per-IP rate limiting layered on top.
package rest

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sorrowscry86/causal-memory-core/internal/logging"
	"github.com/sorrowscry86/causal-memory-core/internal/memerr"
	"github.com/sorrowscry86/causal-memory-core/internal/ratelimit"
)

const subsystem = "rest"

// Version is reported by GET /health.
const Version = "1.0.0"

// Server wires the REST endpoints from spec.md §6.1 onto net/http.
type Server struct {
	mux          *http.ServeMux
	apiKey       string
	corsOrigins  []string
	eventLimiter *ratelimit.Limiter
	queryLimiter *ratelimit.Limiter

	addEvent func(effectText string) (int64, error)
	query    func(queryText string) (string, error)
	stats    func() (total, linked, orphan int, err error)
	ping     func() error
}

// Config bundles what the Server needs beyond the facade callbacks.
type Config struct {
	APIKey              string
	CORSOrigins         []string
	RateLimitEventsPerMin int
	RateLimitQueryPerMin  int
}

// New builds a Server. The four facade operations are passed as closures
// rather than an interface with a context parameter baked in, so callers
// can bind a background context once at wiring time.
func New(cfg Config, addEvent func(string) (int64, error), query func(string) (string, error), stats func() (int, int, int, error), ping func() error) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		apiKey:       cfg.APIKey,
		corsOrigins:  cfg.CORSOrigins,
		eventLimiter: ratelimit.New(cfg.RateLimitEventsPerMin, time.Minute),
		queryLimiter: ratelimit.New(cfg.RateLimitQueryPerMin, time.Minute),
		addEvent:     addEvent,
		query:        query,
		stats:        stats,
		ping:         ping,
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/events", s.withAuth(s.withRateLimit(s.eventLimiter, s.handleEvents)))
	s.mux.HandleFunc("/query", s.withAuth(s.withRateLimit(s.queryLimiter, s.handleQuery)))
	s.mux.HandleFunc("/stats", s.withAuth(s.handleStats))
	return s
}

// ListenAndServe binds addr and serves until the process is stopped or an
// unrecoverable listener error occurs.
func (s *Server) ListenAndServe(addr string) error {
	logging.Info(subsystem, "listening on %s", addr)
	return http.ListenAndServe(addr, s.withCORS(s.mux))
}

// Handler exposes the wired mux, for tests and for embedding behind a
// custom server (e.g. with TLS or graceful shutdown via http.Server).
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.mux)
}

type eventRequest struct {
	EffectText string `json:"effect_text"`
}

type eventResponse struct {
	EventID int64 `json:"event_id"`
	Success bool  `json:"success"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Narrative string `json:"narrative"`
	Success   bool   `json:"success"`
}

type healthResponse struct {
	Status             string `json:"status"`
	Version            string `json:"version"`
	DatabaseConnected  bool   `json:"database_connected"`
}

type statsResponse struct {
	TotalEvents   int     `json:"total_events"`
	LinkedEvents  int     `json:"linked_events"`
	OrphanEvents  int     `json:"orphan_events"`
	ChainCoverage float64 `json:"chain_coverage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	connected := s.ping() == nil
	status := "healthy"
	code := http.StatusOK
	if !connected {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, healthResponse{Status: status, Version: Version, DatabaseConnected: connected})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, memerr.Validation("malformed request body"))
		return
	}
	id, err := s.addEvent(req.EffectText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{EventID: id, Success: true})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, memerr.Validation("malformed request body"))
		return
	}
	narrative, err := s.query(req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Narrative: narrative, Success: true})
}

// handleStats reports the /stats accounting supplement from SPEC_FULL.md
// §11: chain_coverage is the fraction of events that carry a cause_id.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, linked, orphan, err := s.stats()
	if err != nil {
		writeError(w, memerr.Wrap(memerr.KindStorage, "load stats", err))
		return
	}
	coverage := 0.0
	if total > 0 {
		coverage = float64(linked) / float64(total)
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalEvents:   total,
		LinkedEvents:  linked,
		OrphanEvents:  orphan,
		ChainCoverage: coverage,
	})
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next(w, r)
			return
		}
		if r.Header.Get("x-api-key") != s.apiKey {
			writeError(w, memerr.New(memerr.KindUnauthorized, "missing or incorrect x-api-key"))
			return
		}
		next(w, r)
	}
}

func (s *Server) withRateLimit(limiter *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientIP(r)) {
			writeError(w, memerr.New(memerr.KindRateLimited, "rate limit exceeded"))
			return
		}
		next(w, r)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.corsOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", strings.Join(s.corsOrigins, ","))
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type errorBody struct {
	Error struct {
		Type    string         `json:"type"`
		Message string         `json:"message"`
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

func statusFor(kind memerr.Kind) int {
	switch kind {
	case memerr.KindValidation:
		return http.StatusBadRequest
	case memerr.KindServiceUnavailable, memerr.KindStorage:
		return http.StatusServiceUnavailable
	case memerr.KindRateLimited:
		return http.StatusTooManyRequests
	case memerr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := memerr.KindOf(err)
	var body errorBody
	body.Error.Type = string(kind)
	body.Error.Message = err.Error()
	body.Error.Code = strings.ToLower(string(kind))
	body.Error.Details = map[string]any{}
	body.RequestID = uuid.NewString()
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, statusFor(kind), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
