// Package api exposes the consolidation job trigger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/jobs"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/store"
)

// Dispatcher starts jobs and reports their status. *jobs.Dispatcher
// satisfies it.
type Dispatcher interface {
	Submit(jobID string) <-chan jobs.Result
	Get(ctx context.Context, jobID string) (*model.Job, error)
}

type consolidateRequest struct {
	JobID string `json:"job_id"`
}

type consolidateResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// NewRouter builds the HTTP handler.
func NewRouter(d Dispatcher, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/consolidate", consolidate(d))
		r.Get("/jobs/{job_id}", getJob(d))
	})
	return r
}

// consolidate answers immediately; the job runs on the dispatcher and its
// outcome is visible only through the job status.
func consolidate(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consolidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		req.JobID = strings.TrimSpace(req.JobID)
		if req.JobID == "" {
			req.JobID = uuid.New().String()
		}

		d.Submit(req.JobID)
		writeJSON(w, http.StatusAccepted, consolidateResponse{Status: string(model.JobStatusProcessing), JobID: req.JobID})
	}
}

func getJob(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "job_id")
		job, err := d.Get(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		case err != nil:
			zap.L().Error("api: get job", zap.String("job_id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		default:
			writeJSON(w, http.StatusOK, job)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
