package scheduler

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/services/media"
)

const (
	PhotoSweepJobID = "photo-sweep"

	// uploads younger than this may still be mid-request
	DefaultPhotoSweepGrace = time.Hour
)

// PhotoSweep removes uploaded photos that no user references any more.
func PhotoSweep(store *media.PhotoStore, gdb *gorm.DB, grace time.Duration) JobFunc {
	return func(ctx context.Context) error {
		_, err := store.SweepOrphans(ctx, gdb, grace)
		return err
	}
}
