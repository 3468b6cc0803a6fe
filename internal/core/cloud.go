package core

import (
	"context"
	"time"

	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/db"
	"github.com/fedragon/walltok/internal/metrics"
	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

const DefaultLatency = 800 * time.Millisecond

// Cloud is the shared backend seen by every client: the store plus the sync
// channel. Each call waits Latency to mimic a network round trip, and every
// mutation is announced on the channel once it has been persisted.
type Cloud struct {
	Repo    db.Repository
	Channel broadcast.Channel
	Latency time.Duration
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func (c *Cloud) FetchAll(ctx context.Context) (models.Snapshot, error) {
	stop := c.Metrics.Record("cloud.fetch")
	defer func() { _ = stop() }()

	if err := c.delay(ctx); err != nil {
		return models.Snapshot{}, err
	}

	return c.Repo.FetchAll(ctx)
}

func (c *Cloud) Push(ctx context.Context, w models.Wallpaper) error {
	stop := c.Metrics.Record("cloud.push")
	defer func() { _ = stop() }()

	if err := c.delay(ctx); err != nil {
		return err
	}

	revision, err := c.Repo.Insert(ctx, w)
	if err != nil {
		return err
	}

	c.Logger.Info("Pushed wallpaper", zap.String("id", w.ID), zap.Uint64("revision", revision))
	c.notify(ctx, revision)

	return nil
}

func (c *Cloud) Delete(ctx context.Context, id string) error {
	stop := c.Metrics.Record("cloud.delete")
	defer func() { _ = stop() }()

	if err := c.delay(ctx); err != nil {
		return err
	}

	revision, err := c.Repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	c.Logger.Info("Deleted wallpaper", zap.String("id", id), zap.Uint64("revision", revision))
	c.notify(ctx, revision)

	return nil
}

func (c *Cloud) Update(ctx context.Context, id string, patch models.Patch) error {
	stop := c.Metrics.Record("cloud.update")
	defer func() { _ = stop() }()

	if err := c.delay(ctx); err != nil {
		return err
	}

	revision, err := c.Repo.Update(ctx, id, patch)
	if err != nil {
		return err
	}

	c.Logger.Info("Updated wallpaper", zap.String("id", id), zap.Uint64("revision", revision))
	c.notify(ctx, revision)

	return nil
}

// notify is fire-and-forget: a lost broadcast is covered by polling.
func (c *Cloud) notify(ctx context.Context, revision uint64) {
	if c.Channel == nil {
		return
	}

	if err := c.Channel.Publish(ctx, broadcast.NewSyncUpdate(c.Repo.ID(), revision)); err != nil {
		c.Logger.Warn("Cannot broadcast sync update", zap.Uint64("revision", revision), zap.Error(err))
		return
	}

	_ = c.Metrics.Increment("cloud.broadcast")
}

func (c *Cloud) delay(ctx context.Context) error {
	if c.Latency <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(c.Latency)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
