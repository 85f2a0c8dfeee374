package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FetchFunc is the retrieval operation the registry drives, normally
// (*Extractor).Fetch.
type FetchFunc func(ctx context.Context, videoID, formatID string, audioOnly bool, destPath string, onProgress ProgressFunc) error

// Registry owns every in-flight and recently finished job. All mutation
// goes through its methods; handlers and the extractor never touch the
// map directly. Jobs are purely in-memory and do not survive a restart.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	queue   chan *Job
	store   BlobStore
	cache   *MetadataCache
	fetch   FetchFunc
	waiters *jobWaiters
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	activeJobs    int64
	queuedJobs    int64
	completedJobs int64
	failedJobs    int64
}

func NewRegistry(store BlobStore, cache *MetadataCache, fetch FetchFunc, log zerolog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		jobs:    make(map[string]*Job),
		queue:   make(chan *Job, JobQueueCapacity),
		store:   store,
		cache:   cache,
		fetch:   fetch,
		waiters: newJobWaiters(),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < WorkerPoolSize; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.runSweeper()
	return r
}

// Close stops the workers and the sweeper and waits for them to drain.
// Running extractions are cancelled through the registry context.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

// CreateJob registers a new job for an already-described video and hands
// it to the worker pool. It returns immediately; extraction runs in the
// background.
func (r *Registry) CreateJob(videoID, formatID string, audioOnly bool) (Job, error) {
	meta, ok := r.cache.Get(r.ctx, videoID)
	if !ok {
		return Job{}, fmt.Errorf("%w: video %s has not been described", ErrNotFound, videoID)
	}

	ext := "mp4"
	if audioOnly {
		ext = "m4a"
	}
	job := &Job{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		FormatID:  formatID,
		AudioOnly: audioOnly,
		Status:    StatusCreated,
		CreatedAt: time.Now(),
		Ext:       ext,
		FileName:  displayFileName(meta.Title, videoID, ext),
	}
	job.OutputPath = workFileName(videoID, job.selector(), ext)

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	// Copy before enqueueing: a worker may start mutating the job the
	// moment it lands on the queue.
	snap := *job

	select {
	case r.queue <- job:
		atomic.AddInt64(&r.queuedJobs, 1)
		r.log.Info().Str("job_id", snap.ID).Str("video_id", videoID).Str("format", snap.selector()).Msg("job queued")
		return snap, nil
	default:
		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()
		return Job{}, ErrQueueFull
	}
}

func (r *Registry) worker(workerID int) {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case job := <-r.queue:
			r.runJob(workerID, job)
		}
	}
}

func (r *Registry) runJob(workerID int, job *Job) {
	atomic.AddInt64(&r.activeJobs, 1)
	atomic.AddInt64(&r.queuedJobs, -1)
	defer atomic.AddInt64(&r.activeJobs, -1)

	r.mu.Lock()
	job.Status = StatusRunning
	job.StartedAt = time.Now()
	r.mu.Unlock()

	r.log.Info().Int("worker", workerID).Str("job_id", job.ID).Str("video_id", job.VideoID).Msg("extraction started")

	dest := r.store.Path(job.OutputPath)
	err := r.fetch(r.ctx, job.VideoID, job.FormatID, job.AudioOnly, dest, func(raw float64, downloaded, total int64) {
		r.ReportProgress(job.ID, raw)
	})
	if err != nil {
		r.FailJob(job.ID, err.Error())
		return
	}
	r.CompleteJob(job.ID)
}

// ReportProgress rescales a raw extractor percentage into the fetch phase
// of the display range. Raw 100 lands on FetchPhaseCeiling, not 100: the
// merge stage is still ahead, and only CompleteJob may report full
// completion. Out-of-order and post-terminal updates are dropped.
func (r *Registry) ReportProgress(jobID string, rawPercent float64) {
	if rawPercent < 0 {
		return
	}
	display := int(rawPercent * FetchPhaseCeiling / 100)
	if display > FetchPhaseCeiling {
		display = FetchPhaseCeiling
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	if display < job.Percent {
		return
	}
	job.Percent = display
}

// CompleteJob validates the backing file and marks the job complete. A
// missing or empty file converts the would-be success into a failure.
func (r *Registry) CompleteJob(jobID string) {
	r.mu.RLock()
	job, ok := r.jobs[jobID]
	var key string
	if ok {
		key = job.OutputPath
	}
	r.mu.RUnlock()
	if !ok {
		return
	}

	info, err := r.store.Stat(key)
	if err != nil {
		r.FailJob(jobID, fmt.Sprintf("output validation failed: %v", err))
		return
	}
	if info.Size == 0 {
		r.FailJob(jobID, "output validation failed: file is empty")
		return
	}

	r.mu.Lock()
	if job, ok = r.jobs[jobID]; !ok || job.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	job.Status = StatusComplete
	job.Percent = 100
	job.CompletedAt = time.Now()
	job.Error = ""
	snap := *job
	r.mu.Unlock()

	atomic.AddInt64(&r.completedJobs, 1)
	r.log.Info().Str("job_id", jobID).Str("key", snap.OutputPath).Int64("size", info.Size).Msg("job complete")
	r.waiters.notify(snap)
	r.schedulePurge(jobID, RetainAfterTerminal)
}

// FailJob records the cause and moves the job to the terminal failure
// state (percent sentinel -1).
func (r *Registry) FailJob(jobID, cause string) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	job.Status = StatusFailed
	job.Percent = FailedPercent
	job.CompletedAt = time.Now()
	job.Error = cause
	snap := *job
	r.mu.Unlock()

	atomic.AddInt64(&r.failedJobs, 1)
	r.log.Warn().Str("job_id", jobID).Str("cause", cause).Msg("job failed")
	r.waiters.notify(snap)
	r.schedulePurge(jobID, RetainAfterTerminal)
}

// Snapshot returns a copy of the job for observers.
func (r *Registry) Snapshot(jobID string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// AwaitTerminal registers a one-shot channel receiving the job's terminal
// snapshot. Callers that stop observing early must call CancelWait.
func (r *Registry) AwaitTerminal(jobID string) chan Job {
	return r.waiters.register(jobID)
}

func (r *Registry) CancelWait(jobID string, ch chan Job) {
	r.waiters.unregister(jobID, ch)
}

// ResolveForRetrieval maps a job to its blob key, only once complete. If
// the recorded blob has vanished it attempts the prefix recovery scan
// before reporting the output as missing.
func (r *Registry) ResolveForRetrieval(jobID string) (string, Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[jobID]
	var snap Job
	if ok {
		snap = *job
	}
	r.mu.RUnlock()
	if !ok || snap.Status == StatusFailed {
		return "", Job{}, ErrJobNotFound
	}

	switch snap.Status {
	case StatusComplete, StatusRetrieved:
	default:
		return "", snap, ErrJobNotReady
	}

	if info, err := r.store.Stat(snap.OutputPath); err == nil && info.Size > 0 {
		return snap.OutputPath, snap, nil
	}

	// The extractor's temp-file naming has drifted across its releases.
	// Before giving up, look for a newer file sharing the job's
	// videoID_selector prefix and re-point the job at it.
	if key, found := r.recoverByPrefix(snap); found {
		r.mu.Lock()
		if cur, still := r.jobs[jobID]; still {
			cur.OutputPath = key
		}
		r.mu.Unlock()
		snap.OutputPath = key
		r.log.Warn().Str("job_id", jobID).Str("key", key).Msg("recovered drifted output file by prefix")
		return key, snap, nil
	}
	return "", snap, ErrOutputMissing
}

func (r *Registry) recoverByPrefix(snap Job) (string, bool) {
	blobs, err := r.store.List()
	if err != nil {
		return "", false
	}
	prefix := workFilePrefix(snap.VideoID, snap.selector())
	var best BlobInfo
	for _, b := range blobs {
		if !strings.HasPrefix(b.Key, prefix) || b.Size == 0 {
			continue
		}
		if b.ModTime.Before(snap.CreatedAt) {
			continue
		}
		if best.Key == "" || b.ModTime.After(best.ModTime) {
			best = b
		}
	}
	return best.Key, best.Key != ""
}

// MarkRetrieved notes the first successful download and shortens the
// job's retention so a duplicate client request can still be served.
func (r *Registry) MarkRetrieved(jobID string) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != StatusComplete {
		r.mu.Unlock()
		return
	}
	job.Status = StatusRetrieved
	job.RetrievedAt = time.Now()
	r.mu.Unlock()
	r.schedulePurge(jobID, RetainAfterDownload)
}

func (r *Registry) schedulePurge(jobID string, after time.Duration) {
	time.AfterFunc(after, func() { r.purge(jobID) })
}

// purge drops the job and deletes its backing file. Safe to call more
// than once for the same job. Retention timers can outlive the registry,
// so a purge firing after Close is a no-op.
func (r *Registry) purge(jobID string) {
	if r.ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.jobs, jobID)
	key := job.OutputPath
	r.mu.Unlock()

	if key != "" {
		if err := r.store.Delete(key); err != nil {
			r.log.Warn().Err(err).Str("job_id", jobID).Str("key", key).Msg("purge delete failed")
			return
		}
	}
	r.log.Debug().Str("job_id", jobID).Msg("job purged")
}

// RegistryStats mirrors the worker counters for the health endpoints.
type RegistryStats struct {
	TotalJobs     int   `json:"total_jobs"`
	ActiveJobs    int64 `json:"active_jobs"`
	QueuedJobs    int64 `json:"queued_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	total := len(r.jobs)
	r.mu.RUnlock()
	return RegistryStats{
		TotalJobs:     total,
		ActiveJobs:    atomic.LoadInt64(&r.activeJobs),
		QueuedJobs:    atomic.LoadInt64(&r.queuedJobs),
		CompletedJobs: atomic.LoadInt64(&r.completedJobs),
		FailedJobs:    atomic.LoadInt64(&r.failedJobs),
	}
}
