package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/leowmjw/go-chronology/pkg/hcl"
	"github.com/leowmjw/go-chronology/pkg/jsonts"
	"github.com/leowmjw/go-chronology/pkg/series"
	"github.com/leowmjw/go-chronology/pkg/temporal"
)

// Server represents the HTTP server for the series service
type Server struct {
	logger         *slog.Logger
	temporalClient client.Client
	storage        temporal.StorageService
	addr           string
	taskQueue      string

	// serializes read-modify-write cycles on stored documents
	mu sync.Mutex
}

// NewServer creates a new HTTP server
func NewServer(logger *slog.Logger, temporalClient client.Client, storage temporal.StorageService, addr, taskQueue string) *Server {
	return &Server{
		logger:         logger,
		temporalClient: temporalClient,
		storage:        storage,
		addr:           addr,
		taskQueue:      taskQueue,
	}
}

// Handler returns the routed handler wrapped in the logging middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /series", s.handleListSeries)
	mux.HandleFunc("PUT /series/{id}", s.handlePutSeries)
	mux.HandleFunc("GET /series/{id}", s.handleGetSeries)
	mux.HandleFunc("DELETE /series/{id}", s.handleDeleteSeries)
	mux.HandleFunc("GET /series/{id}/value", s.handleGetValue)
	mux.HandleFunc("POST /series/{id}/observations", s.handleSetObservation)
	mux.HandleFunc("DELETE /series/{id}/observations", s.handleClearObservations)
	mux.HandleFunc("GET /series/{id}/subseries", s.handleSubSeries)
	mux.HandleFunc("GET /series/{id}/aggregate", s.handleAggregate)
	mux.HandleFunc("POST /series/{id}/overlay", s.handleOverlay)
	mux.HandleFunc("POST /series/{id}/ingest", s.handleIngest)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.loggingMiddleware(mux)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// readSeriesBody decodes a JSON-TS document or a single HCL series block
func (s *Server) readSeriesBody(r *http.Request) (series.Series, error) {
	contentType, err := hcl.DetectContentType(r)
	if err != nil {
		return nil, series.Errorf(series.KindInvalidArgument, "%s", err)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, series.Errorf(series.KindInvalidArgument, "failed to read request body")
	}

	if contentType == hcl.ContentTypeHCL {
		defs, err := hcl.ParseSeriesFile(string(body))
		if err != nil {
			return nil, series.Errorf(series.KindInvalidArgument, "%s", err)
		}
		if len(defs) != 1 {
			return nil, series.Errorf(series.KindInvalidArgument, "expected exactly one series block, got %d", len(defs))
		}
		return defs[0].Build()
	}
	return jsonts.Unmarshal(body)
}

// PUT /series/{id}
func (s *Server) handlePutSeries(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")

	decoded, err := s.readSeriesBody(r)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.saveSeries(r.Context(), seriesID, decoded)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	s.logger.Info("Stored series", "seriesID", seriesID, "type", summary.Type, "count", summary.Count)
	s.respondJSON(w, http.StatusOK, summary)
}

// GET /series/{id}
func (s *Server) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.LoadSeries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	etag := `"` + jsonts.Fingerprint(doc) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.respondDocument(w, doc)
}

// GET /series
func (s *Server) handleListSeries(w http.ResponseWriter, r *http.Request) {
	ids, err := s.storage.ListSeries(r.Context())
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"series": ids})
}

// DELETE /series/{id}
func (s *Server) handleDeleteSeries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.DeleteSeries(r.Context(), r.PathValue("id")); err != nil {
		s.respondSeriesError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /series/{id}/overlay
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")

	var body struct {
		Layers []string `json:"layers"`
		Target string   `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Layers) == 0 {
		s.respondError(w, http.StatusBadRequest, "at least one layer is required")
		return
	}

	request := temporal.OverlayRequest{
		BaseID:   seriesID,
		LayerIDs: body.Layers,
		TargetID: body.Target,
	}
	if request.TargetID == "" {
		request.TargetID = seriesID
	}

	s.logger.Info("Starting overlay", "baseID", seriesID, "layers", len(body.Layers), "targetID", request.TargetID)

	workflowRun, err := s.temporalClient.ExecuteWorkflow(
		r.Context(),
		client.StartWorkflowOptions{
			ID:        temporal.GenerateOverlayWorkflowID(request.TargetID),
			TaskQueue: s.taskQueue,
		},
		temporal.OverlayWorkflow,
		request,
	)
	if err != nil {
		s.logger.Error("Failed to start overlay workflow", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start overlay")
		return
	}

	var summary *temporal.SeriesSummary
	if err := workflowRun.Get(r.Context(), &summary); err != nil {
		s.logger.Error("Overlay workflow failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "overlay execution failed")
		return
	}

	s.respondJSON(w, http.StatusOK, summary)
}

// POST /series/{id}/ingest
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	seriesID := r.PathValue("id")

	decoded, err := s.readSeriesBody(r)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}
	doc, err := jsonts.Marshal(decoded)
	if err != nil {
		s.respondSeriesError(w, err)
		return
	}

	// Use SignalWithStart to ensure workflow exists
	workflowID := temporal.GenerateIngestionWorkflowID(seriesID)
	_, err = s.temporalClient.SignalWithStartWorkflow(
		r.Context(),
		workflowID,
		temporal.ObservationSignalName,
		temporal.ObservationSignal{Document: string(doc)},
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: s.taskQueue,
		},
		temporal.IngestionWorkflow,
		seriesID,
	)
	if err != nil {
		s.logger.Error("Failed to signal workflow", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to queue document")
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":           "document queued for ingestion",
		"series_id":         seriesID,
		"observation_count": decoded.Count(),
	})
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Middleware for request logging
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
			"user_agent", r.UserAgent(),
		)
	})
}

// statusFor maps storage and series errors onto HTTP statuses
func statusFor(err error) int {
	if errors.Is(err, temporal.ErrSeriesNotFound) {
		return http.StatusNotFound
	}
	switch series.KindOf(err) {
	case series.KindInvalidArgument, series.KindInvalidJSONTS, series.KindInvalidPeriod:
		return http.StatusBadRequest
	case series.KindMissing:
		return http.StatusNotFound
	case series.KindCollision:
		return http.StatusConflict
	case series.KindNotSupported, series.KindNotSerializable, series.KindUnallocatedDate, series.KindInsufficientPrecision:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Response helpers
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondDocument(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		s.logger.Error("Failed to write document", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn("HTTP error response", "status", status, "message", message)
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) respondSeriesError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
		s.respondError(w, status, "internal error")
		return
	}
	s.respondError(w, status, err.Error())
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
