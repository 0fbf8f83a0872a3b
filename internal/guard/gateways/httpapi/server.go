// Package httpapi exposes the lookup, decision and navigation endpoints
// and mounts the prompt WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/domain"
	"github.com/haukened/navguard/internal/guard/services/reputation"
)

const maxBodyBytes = 1 << 20

// Options configures a Server. Reputation and Navigator are optional so a
// pure lookup server or a pure navigation front end can be run.
type Options struct {
	Addr       string
	Reputation Reputation
	Navigator  Navigator
	// Prompts serves the prompt WebSocket at /ws when set.
	Prompts http.Handler
	Clock   clock.Clock
	Logger  log.Logger
}

// Server is the HTTP front end.
type Server struct {
	addr       string
	reputation Reputation
	navigator  Navigator
	prompts    http.Handler
	clock      clock.Clock
	logger     log.Logger
	validate   *validator.Validate

	// Synchronization for graceful shutdown
	mu       sync.RWMutex
	running  bool
	srv      *http.Server
	listener net.Listener
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Server{
		addr:       opts.Addr,
		reputation: opts.Reputation,
		navigator:  opts.Navigator,
		prompts:    opts.Prompts,
		clock:      opts.Clock,
		logger:     opts.Logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the routed handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /blocked.html", s.handleBlocked)

	if s.reputation != nil {
		mux.HandleFunc("POST /api/check-url", s.handleCheckURL)
		mux.HandleFunc("POST /api/add-legitimate", s.handleAddLegitimate)
		mux.HandleFunc("POST /api/add-suspicious", s.handleAddSuspicious)
		mux.HandleFunc("GET /api/test", s.handleTest)
		mux.HandleFunc("GET /api/db-test", s.handleDBTest)
	}
	if s.navigator != nil {
		mux.HandleFunc("POST /api/classify", s.handleClassify)
		mux.HandleFunc("POST /api/navigation", s.handleNavigation)
	}
	if s.prompts != nil {
		mux.Handle("GET /ws", s.prompts)
	}
	return s.withLogging(withCORS(mux))
}

// Start binds the listener and serves in the background. Cancelling ctx
// stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("HTTP server already running")
	}

	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = l
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.running = true

	s.logger.Info(map[string]any{"address": l.Addr().String()}, "HTTP server started")

	go func(srv *http.Server) {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(map[string]any{"error": err.Error()}, "HTTP server failed")
		}
	}(s.srv)

	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	return nil
}

// Stop gracefully shuts the server down. Hijacked WebSocket connections
// are not tracked by http.Server and must be closed by their owner.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"error": err.Error()}, "Error shutting down HTTP server")
	}
	s.logger.Info(map[string]any{"address": s.listener.Addr().String()}, "HTTP server stopped")
	return err
}

// Address returns the bound address while running, otherwise the
// configured one.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running && s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.clock.Now().Unix(),
	})
}

func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "API is working"})
}

func (s *Server) handleBlocked(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	msg := fmt.Sprintf("Navigation to %s was blocked.", q.Get("url"))
	if reason := q.Get("reason"); reason != "" {
		msg += " Reason: " + reason
	}
	_, _ = fmt.Fprintln(w, msg)
}

func (s *Server) handleCheckURL(w http.ResponseWriter, r *http.Request) {
	var req checkURLRequest
	if !s.decode(w, r, &req, "URL is required") {
		return
	}
	v, err := s.reputation.Check(req.URL)
	if err != nil {
		s.serverError(w, err, errors.Is(err, reputation.ErrInvalidDomain))
		return
	}
	writeJSON(w, http.StatusOK, checkURLResponse{Category: v.Category.String()})
}

func (s *Server) handleAddLegitimate(w http.ResponseWriter, r *http.Request) {
	var req addLegitimateRequest
	if !s.decode(w, r, &req, "official_url is required") {
		return
	}
	res, err := s.reputation.AddLegitimate(req.OfficialURL)
	s.writeAdd(w, res, err)
}

func (s *Server) handleAddSuspicious(w http.ResponseWriter, r *http.Request) {
	var req addSuspiciousRequest
	if !s.decode(w, r, &req, "suspicious_url is required") {
		return
	}
	res, err := s.reputation.AddSuspicious(req.SuspiciousURL)
	s.writeAdd(w, res, err)
}

func (s *Server) writeAdd(w http.ResponseWriter, res reputation.AddResult, err error) {
	if err != nil {
		s.serverError(w, err, errors.Is(err, reputation.ErrInvalidDomain))
		return
	}
	writeJSON(w, http.StatusOK, addResponse{Success: res.Success, Message: res.Message, Domain: res.Domain})
}

func (s *Server) handleDBTest(w http.ResponseWriter, _ *http.Request) {
	st, err := s.reputation.Stats()
	if err != nil {
		s.logger.Error(map[string]any{"error": err.Error()}, "Site list stats failed")
		writeJSON(w, http.StatusInternalServerError, dbTestResponse{DatabaseConnection: "failed", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dbTestResponse{
		DatabaseConnection: "success",
		LegitimateSites:    st.Legitimate,
		SuspiciousSites:    st.Suspicious,
		LegitimateExamples: nonNil(st.LegitimateExamples),
		SuspiciousExamples: nonNil(st.SuspiciousExamples),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req checkURLRequest
	if !s.decode(w, r, &req, "URL is required") {
		return
	}
	out := s.navigator.Check(r.Context(), req.URL)
	writeJSON(w, http.StatusOK, classifyResponse{
		URL:       out.URL,
		Category:  out.Category.String(),
		Timestamp: out.Timestamp.UnixMilli(),
		Error:     out.Error,
	})
}

// handleNavigation blocks until the navigation is decided, which for an
// unknown destination means until the prompt is answered or expires.
func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if !s.decode(w, r, &req, "URL is required") {
		return
	}
	sess := &responseSession{id: req.SessionID}
	if sess.id == "" {
		sess.id = uuid.NewString()
	}
	res := s.navigator.HandleNavigation(r.Context(), domain.Navigation{
		URL:     req.URL,
		FrameID: req.FrameID,
		Session: sess,
	})
	writeJSON(w, http.StatusOK, navigationResponse{
		URL:       res.URL,
		Category:  res.Category.String(),
		Action:    string(res.Action),
		Reason:    res.Reason.String(),
		Redirect:  sess.Redirect(),
		Timestamp: res.Timestamp.UnixMilli(),
	})
}

// --- helpers ---

// decode reads a JSON body into dst and validates it. On failure it writes
// a 400 with missingMsg for validation errors and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, missingMsg string) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: missingMsg})
		return false
	}
	return true
}

func (s *Server) serverError(w http.ResponseWriter, err error, badRequest bool) {
	if badRequest {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error(map[string]any{"error": err.Error()}, "Request failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
