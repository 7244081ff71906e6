package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// refresher rebuilds the index whenever another process (a `sync` run)
// has refilled the cache.
type refresher struct {
	app             *App
	refreshInterval time.Duration
}

func newRefresher(a *App, interval time.Duration) *refresher {
	return &refresher{app: a, refreshInterval: interval}
}

func (r *refresher) monitor(ctx context.Context) {
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh reports whether the index was rebuilt.
func (r *refresher) refresh(ctx context.Context) bool {
	stamp, err := r.app.store.Version(ctx)
	if err != nil {
		log.Errorf("[INDEX] cache version check failed: %s", err.Error())
		return false
	}

	if stamp == 0 || stamp == r.app.indexed.Load() {
		return false
	}

	log.Printf("[INDEX] cache changed, refreshing index...")

	if err := r.app.Reindex(ctx); err != nil {
		log.Errorf("[INDEX] refresh failed: %s", err.Error())
		return false
	}

	return true
}
