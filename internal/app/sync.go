package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/edtechhub/kerkoapp/internal/cache"
	"github.com/edtechhub/kerkoapp/internal/index"
)

// Sync fetches the library from Zotero into the cache, then rebuilds the
// index from it.
func (a *App) Sync(ctx context.Context) error {
	start := time.Now()

	formats := a.composer.RequiredFormats()
	log.Printf("[ZOTERO] syncing library, formats %v", formats)

	collections, err := a.zotero.Collections(ctx)
	if err != nil {
		return fmt.Errorf("fetching collections: %w", err)
	}

	items, version, err := a.zotero.Items(ctx, formats)
	if err != nil {
		return fmt.Errorf("fetching items: %w", err)
	}

	itemTypes, err := a.zotero.ItemTypes(ctx)
	if err != nil {
		return fmt.Errorf("fetching item types: %w", err)
	}

	lib := cache.Library{
		Items:       items,
		Collections: collections,
		ItemTypes:   itemTypes,
		Version:     version,
	}

	if err := a.store.Replace(ctx, lib); err != nil {
		return err
	}

	syncDuration.Observe(time.Since(start).Seconds())
	lastSync.SetToCurrentTime()

	log.Printf("[ZOTERO] sync done: %d records in %0.2fs", len(items), time.Since(start).Seconds())

	return a.Reindex(ctx)
}

// Reindex rebuilds the search index from the cache.
func (a *App) Reindex(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	if err != nil {
		indexRefreshes.WithLabelValues("error").Inc()
		return err
	}

	docs := index.Build(a.composer, snap)

	if err := a.index.Replace(ctx, docs); err != nil {
		indexRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("replacing index: %w", err)
	}

	a.indexed.Store(snap.SyncedAt.UnixNano())
	indexedDocuments.Set(float64(len(docs)))
	indexRefreshes.WithLabelValues("ok").Inc()

	log.Printf("[INDEX] indexed %d documents from sync of %s", len(docs), snap.SyncedAt.Format(time.RFC3339))

	return nil
}
