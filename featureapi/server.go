package featureapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/evanfuller/autoloop/feature"
)

// DefaultAddr is where the API listens. Loopback only; the API is a local
// sidecar for agent tools, not a public service.
const DefaultAddr = "127.0.0.1:8765"

// Server serves the feature store over HTTP.
type Server struct {
	store  *feature.Store
	logger *slog.Logger
}

// NewServer wraps a feature store. A nil logger discards log output.
func NewServer(store *feature.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: store, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /features", s.handleList)
	mux.HandleFunc("GET /features/next", s.handleNext)
	mux.HandleFunc("GET /features/stats", s.handleStats)
	mux.HandleFunc("GET /features/all-passing", s.handleAllPassing)
	mux.HandleFunc("GET /features/{id}", s.handleGet)
	mux.HandleFunc("POST /features", s.handleCreate)
	mux.HandleFunc("POST /features/bulk", s.handleBulkCreate)
	mux.HandleFunc("PATCH /features/{id}", s.handleUpdate)
	mux.HandleFunc("POST /features/{id}/skip", s.handleSkip)
	mux.HandleFunc("DELETE /features/{id}", s.handleDelete)
	return mux
}

// ListenAndServe runs the API until ctx is cancelled, then shuts down
// gracefully. It returns once the listener is closed.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("feature API listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Response payloads. Field names mirror what agent prompts document.

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type listResponse struct {
	Features []feature.Feature `json:"features"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type bulkCreateRequest struct {
	Features []feature.Draft `json:"features"`
}

type bulkCreateResponse struct {
	Created int `json:"created"`
}

type updateRequest struct {
	Passes *bool `json:"passes"`
}

type skipResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	OldPriority int64  `json:"old_priority"`
	NewPriority int64  `json:"new_priority"`
	Message     string `json:"message"`
}

type allPassingResponse struct {
	Features []feature.Summary `json:"features"`
	Count    int               `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Database: "connected"}
	if err := s.store.Ping(r.Context()); err != nil {
		resp = healthResponse{Status: "unhealthy", Database: err.Error()}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := feature.ListFilter{Limit: feature.MaxListLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}
	if v := q.Get("passes"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "passes must be true or false")
			return
		}
		filter.Passes = &b
	}
	filter.Category = q.Get("category")
	if v := q.Get("random"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "random must be true or false")
			return
		}
		filter.Random = b
	}

	// Report the clamped limit back to the caller.
	if filter.Limit < 1 || filter.Limit > feature.MaxListLimit {
		filter.Limit = feature.MaxListLimit
	}

	features, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if features == nil {
		features = []feature.Feature{}
	}
	s.writeJSON(w, http.StatusOK, listResponse{
		Features: features,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.Next(r.Context())
	if errors.Is(err, feature.ErrNoPending) {
		s.writeError(w, http.StatusNotFound, "All features are passing! No more work to do.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAllPassing(w http.ResponseWriter, r *http.Request) {
	features, err := s.store.AllPassing(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if features == nil {
		features = []feature.Summary{}
	}
	s.writeJSON(w, http.StatusOK, allPassingResponse{Features: features, Count: len(features)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.featureID(w, r)
	if !ok {
		return
	}
	f, err := s.store.Get(r.Context(), id)
	if errors.Is(err, feature.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Feature not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d feature.Draft
	if !s.decode(w, r, &d) {
		return
	}
	if err := d.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	f, err := s.store.Create(r.Context(), d)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Features) == 0 {
		s.writeError(w, http.StatusUnprocessableEntity, "at least one feature is required")
		return
	}
	for i, d := range req.Features {
		if err := d.Validate(); err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("feature %d: %v", i, err))
			return
		}
	}
	created, err := s.store.BulkCreate(r.Context(), req.Features)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, bulkCreateResponse{Created: created})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.featureID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Passes == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "passes is required")
		return
	}
	f, err := s.store.SetPasses(r.Context(), id, *req.Passes)
	if errors.Is(err, feature.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Feature not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	id, ok := s.featureID(w, r)
	if !ok {
		return
	}
	f, oldPriority, err := s.store.Skip(r.Context(), id)
	if errors.Is(err, feature.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Feature not found")
		return
	}
	if errors.Is(err, feature.ErrAlreadyPassing) {
		s.writeError(w, http.StatusBadRequest, "Cannot skip a feature that is already passing")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, skipResponse{
		ID:          f.ID,
		Name:        f.Name,
		OldPriority: oldPriority,
		NewPriority: f.Priority,
		Message:     fmt.Sprintf("Feature '%s' moved to end of queue", f.Name),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.featureID(w, r)
	if !ok {
		return
	}
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, feature.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Feature not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) featureID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "feature ID must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError uses the {"detail": ...} error shape that the agent
// prompts document.
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("feature API request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal server error")
}
