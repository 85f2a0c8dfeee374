package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// App bundles the dependencies the HTTP layer needs.
type App struct {
	cfg       Config
	log       zerolog.Logger
	registry  *Registry
	extractor *Extractor
	cache     *MetadataCache
	store     BlobStore
}

// Router wires the HTTP surface.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(RequestsPerSecond), BurstSize)))

	r.Route("/api", func(r chi.Router) {
		r.Post("/describe", a.handleDescribe)
		r.Post("/fetch", a.handleFetch)
		r.Get("/progress/{jobID}", a.handleProgressStream)
		r.Get("/download/{jobID}", a.handleDownload)
		r.Head("/download/{jobID}", a.handleDownload)
		r.Get("/health", a.handleHealth)
		r.Get("/stats", a.handleStats)
	})
	return r
}

type describeRequest struct {
	URL string `json:"url"`
}

func (req *describeRequest) validate() error {
	if req.URL == "" {
		return fmt.Errorf("%w: missing url", ErrValidation)
	}
	return nil
}

type fetchRequest struct {
	VideoID     string `json:"videoId"`
	FormatID    string `json:"formatId"`
	IsAudioOnly bool   `json:"isAudioOnly"`
}

func (req *fetchRequest) validate() error {
	if req.VideoID == "" {
		return fmt.Errorf("%w: missing videoId", ErrValidation)
	}
	if !req.IsAudioOnly && req.FormatID == "" {
		return fmt.Errorf("%w: missing formatId", ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *App) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta, err := a.extractor.Describe(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccessDenied):
			// The message text is what the client branches on.
			writeError(w, http.StatusInternalServerError, err.Error())
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	a.cache.Put(r.Context(), meta)
	writeJSON(w, http.StatusOK, meta)
}

func (a *App) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := a.registry.CreateJob(req.VideoID, req.FormatID, req.IsAudioOnly)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, "server busy, please try again later")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"jobId": job.ID})
}

// handleDownload streams the finished file. HEAD is honored so clients
// can probe for existence without a body.
func (a *App) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	key, job, err := a.registry.ResolveForRetrieval(jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrJobNotReady):
			writeError(w, http.StatusNotFound, "job not ready")
		case errors.Is(err, ErrOutputMissing):
			writeError(w, http.StatusNotFound, "output file missing")
		default:
			writeError(w, http.StatusNotFound, "job not found")
		}
		return
	}

	info, err := a.store.Stat(key)
	if err != nil || info.Size == 0 {
		writeError(w, http.StatusInternalServerError, "output file unreadable")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := a.store.Open(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "output file unreadable")
		return
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		a.log.Warn().Err(err).Str("job_id", jobID).Msg("download interrupted")
		return
	}
	a.registry.MarkRetrieved(jobID)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := a.registry.Stats()
	status := "healthy"
	if stats.ActiveJobs >= WorkerPoolSize {
		status = "busy"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   status,
		"workers":  WorkerPoolSize,
		"active":   stats.ActiveJobs,
		"queued":   stats.QueuedJobs,
		"work_dir": a.cfg.WorkDir,
	})
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.Stats())
}
