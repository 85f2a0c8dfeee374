package main

import "time"

// runSweeper reclaims working-directory space on a fixed interval, even
// for files whose job callbacks never fired.
func (r *Registry) runSweeper() {
	defer r.wg.Done()
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.SweepOnce()
		case <-r.ctx.Done():
			return
		}
	}
}

// SweepOnce deletes work files old enough to be orphaned. A file
// referenced by any registered job is always skipped: non-terminal jobs
// still own their file, and terminal jobs stay registered through their
// retention window. Per-file failures are logged and do not abort the
// pass.
func (r *Registry) SweepOnce() {
	blobs, err := r.store.List()
	if err != nil {
		r.log.Warn().Err(err).Msg("sweep: listing work dir failed")
		return
	}

	referenced := r.referencedKeys()
	cutoff := time.Now().Add(-SweepMaxAge)
	for _, b := range blobs {
		if referenced[b.Key] {
			continue
		}
		if b.ModTime.After(cutoff) {
			continue
		}
		if err := r.store.Delete(b.Key); err != nil {
			r.log.Warn().Err(err).Str("key", b.Key).Msg("sweep: delete failed")
			continue
		}
		r.log.Info().Str("key", b.Key).Msg("sweep: removed stale work file")
	}
}

func (r *Registry) referencedKeys() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make(map[string]bool, len(r.jobs))
	for _, job := range r.jobs {
		if job.OutputPath != "" {
			keys[job.OutputPath] = true
		}
	}
	return keys
}
