// Package misttest provides a fake Mist API for tests and the mock-server tool.
package misttest

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Token is the API token NewServer accepts.
const Token = "test-token"

const apiRoot = "/api/v1"

type response struct {
	status int
	body   []byte
	delay  time.Duration
}

// Handler answers GET requests from a table of canned responses. Requests without a
// known "Authorization: Token <token>" header get 401, unknown paths get 404.
type Handler struct {
	mu        sync.RWMutex
	tokens    []string
	responses map[string]response
	requests  []string
	logger    *slog.Logger
}

// NewHandler returns a *Handler accepting the given tokens.
func NewHandler(logger *slog.Logger, tokens ...string) *Handler {
	return &Handler{
		tokens:    tokens,
		responses: make(map[string]response),
		logger:    logger,
	}
}

// Set registers a raw response for path.
func (h *Handler) Set(path string, status int, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses[strings.TrimSuffix(path, "/")] = response{status: status, body: body}
}

// SetJSON registers a 200 response encoding v.
func (h *Handler) SetJSON(path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Set(path, http.StatusOK, body)
	return nil
}

// SetDelay makes the registered response for path wait d before it is written.
func (h *Handler) SetDelay(path string, d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	path = strings.TrimSuffix(path, "/")
	if r, ok := h.responses[path]; ok {
		r.delay = d
		h.responses[path] = r
	}
}

// Load registers every endpoint of a parsed capture file.
func (h *Handler) Load(endpoints map[string]json.RawMessage) {
	for path, body := range endpoints {
		h.Set(path, http.StatusOK, body)
	}
}

// Requests returns the paths served so far, in arrival order.
func (h *Handler) Requests() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.requests...)
}

// Paths returns the number of registered endpoints.
func (h *Handler) Paths() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.responses)
}

func (h *Handler) authorized(r *http.Request) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Token ")
	if !ok {
		return false
	}
	for _, token := range h.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(got)) == 1 {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	h.mu.Lock()
	h.requests = append(h.requests, path)
	resp, found := h.responses[path]
	h.mu.Unlock()

	if !h.authorized(r) {
		h.logger.Info("unauthorized request", slog.String("path", path))
		http.Error(w, `{"detail":"Authentication credentials were not provided."}`, http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !found {
		h.logger.Info("endpoint not found", slog.String("path", path))
		http.Error(w, fmt.Sprintf(`{"detail":"endpoint not found: %s"}`, path), http.StatusNotFound)
		return
	}

	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}

	h.logger.Debug("request served", slog.String("path", path), slog.Int("status", resp.status))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if _, err := w.Write(resp.body); err != nil {
		h.logger.Warn("failed to write response", slog.Any("error", err))
	}
}

// TB is the subset of testing.TB the Server helpers use. This package must not import
// testing: tools/mock-server links it.
type TB interface {
	Helper()
	Cleanup(func())
	Fatalf(format string, args ...any)
}

// Server is a Handler behind an httptest.Server.
type Server struct {
	*httptest.Server
	*Handler
}

// NewServer starts a fake Mist API accepting Token. It is closed when the test ends.
func NewServer(t TB) *Server {
	t.Helper()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), Token)
	s := &Server{
		Server:  httptest.NewServer(h),
		Handler: h,
	}
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure a client with.
func (s *Server) BaseURL() string {
	return s.URL + apiRoot
}

// SetAPI registers a raw response for path below BaseURL.
func (s *Server) SetAPI(path string, status int, body []byte) {
	s.Set(apiRoot+path, status, body)
}

// SetAPIJSON registers v for path below BaseURL and fails the test on encoding errors.
func (s *Server) SetAPIJSON(t TB, path string, v any) {
	t.Helper()
	if err := s.SetJSON(apiRoot+path, v); err != nil {
		t.Fatalf("encoding response for %s: %v", path, err)
	}
}
