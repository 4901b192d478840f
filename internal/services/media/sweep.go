package media

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

// SweepOrphans removes stored photos that no user references any more.
// Files younger than grace are kept so an upload racing the sweep survives.
func (s *PhotoStore) SweepOrphans(ctx context.Context, gdb *gorm.DB, grace time.Duration) (int, error) {
	var used []string
	if err := gdb.WithContext(ctx).
		Model(&models.User{}).
		Where("profile_photo <> ''").
		Pluck("profile_photo", &used).Error; err != nil {
		return 0, err
	}

	keep := make(map[string]struct{}, len(used))
	for _, p := range used {
		if local, ok := s.localPath(p); ok {
			keep[local] = struct{}{}
		}
	}

	root := filepath.Join(s.Dir, photosSubdir)
	cutoff := time.Now().Add(-grace)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := keep[path]; ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Warn("failed to remove orphaned photo", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, err
	}

	if removed > 0 {
		log.Info("removed orphaned photos", "count", removed)
	}
	return removed, nil
}
