package core

import (
	"context"

	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

// Sweep removes resubmitted wallpapers: when several records share a source
// locator, the newest (first in the sequence) is kept.
func Sweep(ctx context.Context, cloud *Cloud, logger *zap.Logger) (int, error) {
	logger.Info("Sweeping duplicated wallpapers...")

	snap, err := cloud.FetchAll(ctx)
	if err != nil {
		return 0, err
	}

	var swept int
	for _, w := range duplicates(snap.Wallpapers) {
		if err := cloud.Delete(ctx, w.ID); err != nil {
			return swept, err
		}
		logger.Info("Swept duplicated wallpaper", zap.String("id", w.ID), zap.String("title", w.Title))
		swept++
	}

	return swept, nil
}

func duplicates(ws []models.Wallpaper) []models.Wallpaper {
	seen := make(map[string]bool, len(ws))

	var dups []models.Wallpaper
	for _, w := range ws {
		if seen[w.URL] {
			dups = append(dups, w)
			continue
		}
		seen[w.URL] = true
	}

	return dups
}
