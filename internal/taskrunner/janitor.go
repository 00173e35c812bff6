package taskrunner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"vision-gateway/log"
)

// StartJanitor evicts terminal jobs older than ttl, together with their
// artifacts, every interval until the runner is closed.
func (r *Runner) StartJanitor(ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 2
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.workerWg.Add(1)
	go func() {
		defer r.workerWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now.Add(-ttl))
			}
		}
	}()
}

// Sweep evicts terminal jobs that finished before cutoff and returns how
// many were removed.
func (r *Runner) Sweep(cutoff time.Time) int {
	evicted := r.store.Evict(cutoff)
	for _, id := range evicted {
		if err := r.artifacts.Delete(context.Background(), id); err != nil {
			log.GetLogger().Warn("[JobRunner] artifact cleanup failed", zap.String("job_id", id), zap.Error(err))
		}
	}
	if len(evicted) > 0 {
		log.GetLogger().Info("[JobRunner] evicted expired jobs", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}
