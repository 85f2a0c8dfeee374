package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// progressEvent is one server-push message on the progress stream.
type progressEvent struct {
	Percent   int    `json:"percent"`
	FileName  string `json:"fileName,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleProgressStream serves one SSE connection per job. It emits the
// current snapshot immediately, then polls the registry once per tick,
// and additionally listens on the job's terminal waiter so the final
// payload goes out without waiting for the next poll. The ticker and the
// waiter are released on client disconnect, unconditionally.
func (a *App) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(ev progressEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	snap, err := a.registry.Snapshot(jobID)
	if err != nil {
		send(progressEvent{Percent: FailedPercent, Error: "job not found"})
		return
	}
	if emitSnapshot(send, snap) {
		return
	}

	waiter := a.registry.AwaitTerminal(jobID)
	defer a.registry.CancelWait(jobID, waiter)

	ticker := time.NewTicker(ProgressPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case job, open := <-waiter:
			if open {
				emitSnapshot(send, job)
			}
			return
		case <-ticker.C:
			snap, err := a.registry.Snapshot(jobID)
			if err != nil {
				send(progressEvent{Percent: FailedPercent, Error: "job no longer exists"})
				return
			}
			if emitSnapshot(send, snap) {
				return
			}
		}
	}
}

// emitSnapshot sends the event for one job snapshot and reports whether
// the stream should close.
func emitSnapshot(send func(progressEvent), job Job) bool {
	switch job.Status {
	case StatusFailed:
		send(progressEvent{Percent: FailedPercent, Error: job.Error})
		return true
	case StatusComplete, StatusRetrieved:
		send(progressEvent{Percent: 100, FileName: job.FileName, Completed: true})
		return true
	default:
		send(progressEvent{Percent: job.Percent})
		return false
	}
}
