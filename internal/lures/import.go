package lures

import (
	"context"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// Store is the part of the datastore the importer needs.
type Store interface {
	FindLure(ctx context.Context, manufacturer, color string, length float64) (*datastore.Lure, error)
	SaveLure(ctx context.Context, l *datastore.Lure) error
}

// ImportResult counts what an import did.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// ImportCatalog upserts items into the store, matching existing lures by
// manufacturer, color and length. An existing lure keeps its id so catches
// referencing it stay linked; its buoyancy, weight and images are replaced.
// The import stops at the first store error and reports what was done.
func ImportCatalog(ctx context.Context, store Store, items []Item, log logger.Logger) (ImportResult, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	log = log.Module("lures")

	var res ImportResult
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		lure := item.Lure()
		existing, err := store.FindLure(ctx, lure.Manufacturer, lure.Color, lure.Length)
		if err != nil {
			return res, err
		}
		if existing != nil {
			lure.ID = existing.ID
			lure.CreatedAt = existing.CreatedAt
		}
		if err := store.SaveLure(ctx, lure); err != nil {
			return res, err
		}

		if existing != nil {
			res.Updated++
		} else {
			res.Created++
		}
	}

	log.Info("lure catalog imported",
		logger.Int("created", res.Created),
		logger.Int("updated", res.Updated))
	return res, nil
}
