package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/db"
	"github.com/fedragon/walltok/internal/metrics"
	"github.com/fedragon/walltok/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newRepo(t *testing.T) db.Repository {
	t.Helper()

	dbase, err := db.Connect(filepath.Join(t.TempDir(), "walltok.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbase.Close() })

	repo, err := db.NewRepository(dbase, zap.NewNop())
	require.NoError(t, err)

	return repo
}

func TestCloudBroadcastsAfterPersisting(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newRepo(t)
	hub := broadcast.NewHub(zap.NewNop())
	sender := hub.Join()
	listener := hub.Join()
	defer sender.Close()
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := listener.Subscribe(ctx)
	require.NoError(t, err)

	mx := metrics.NewMetrics()
	cloud := &Cloud{Repo: repo, Channel: sender, Metrics: mx, Logger: zap.NewNop()}

	require.NoError(t, cloud.Push(ctx, models.Wallpaper{ID: "3", Type: models.Image, URL: "https://example.com/3.jpg"}))

	select {
	case m := <-messages:
		assert.True(t, m.IsSyncUpdate())
		assert.Equal(t, uint64(1), m.Revision)
		assert.Equal(t, sender.ID(), m.Origin)
		assert.Equal(t, repo.ID(), m.Store)

		snap, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.Revision, m.Revision, "the announced revision is already readable")
	case <-time.After(time.Second):
		t.Fatal("expected a sync update")
	}

	require.NoError(t, cloud.Delete(ctx, "3"))
	m := <-messages
	assert.Equal(t, uint64(2), m.Revision)

	likes := 7
	require.NoError(t, cloud.Update(ctx, "1", models.Patch{Likes: &likes}))
	m = <-messages
	assert.Equal(t, uint64(3), m.Revision)

	assert.Equal(t, float64(3), mx.Count("cloud.broadcast"))
}

func TestCloudWithoutChannelStillPersists(t *testing.T) {
	cloud := &Cloud{Repo: newRepo(t), Logger: zap.NewNop()}
	ctx := context.Background()

	require.NoError(t, cloud.Push(ctx, models.Wallpaper{ID: "3"}))

	snap, err := cloud.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Wallpapers, 3)
	assert.Equal(t, "3", snap.Wallpapers[0].ID)
}

func TestCloudDoesNotBroadcastFailedMutations(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := broadcast.NewHub(zap.NewNop())
	sender := hub.Join()
	listener := hub.Join()
	defer sender.Close()
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := listener.Subscribe(ctx)
	require.NoError(t, err)

	cloud := &Cloud{Repo: newRepo(t), Channel: sender, Logger: zap.NewNop()}
	assert.ErrorIs(t, cloud.Push(ctx, models.Wallpaper{ID: "1"}), db.ErrDuplicateID)

	select {
	case m := <-messages:
		t.Fatalf("unexpected broadcast %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloudLatencyHonoursContext(t *testing.T) {
	cloud := &Cloud{Repo: newRepo(t), Latency: time.Hour, Logger: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := cloud.FetchAll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloudLatency(t *testing.T) {
	cloud := &Cloud{Repo: newRepo(t), Latency: 30 * time.Millisecond, Logger: zap.NewNop()}

	start := time.Now()
	_, err := cloud.FetchAll(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSweep(t *testing.T) {
	cloud := &Cloud{Repo: newRepo(t), Logger: zap.NewNop()}
	ctx := context.Background()

	for _, w := range []models.Wallpaper{
		{ID: "10", URL: "https://example.com/a.jpg"},
		{ID: "11", URL: "https://example.com/b.jpg"},
		{ID: "12", URL: "https://example.com/a.jpg"},
	} {
		require.NoError(t, cloud.Push(ctx, w))
	}

	swept, err := Sweep(ctx, cloud, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	snap, err := cloud.FetchAll(ctx)
	require.NoError(t, err)

	ids := []string{}
	for _, w := range snap.Wallpapers {
		ids = append(ids, w.ID)
	}
	assert.Equal(t, []string{"12", "11", "1", "2"}, ids, "the newest copy is kept")
}
