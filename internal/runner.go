package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/config"
	"github.com/fedragon/walltok/internal/core"
	"github.com/fedragon/walltok/internal/db"
	"github.com/fedragon/walltok/internal/feed"
	"github.com/fedragon/walltok/internal/fs"
	"github.com/fedragon/walltok/internal/metadata"
	"github.com/fedragon/walltok/internal/metrics"
	"github.com/fedragon/walltok/internal/models"
	"github.com/fedragon/walltok/internal/server"
	"github.com/fedragon/walltok/internal/storage/s3"

	"github.com/boltdb/bolt"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrStoreBusy means another process holds the store file. A bolt file has a
// single owner: other clients reach it through `serve`.
var ErrStoreBusy = errors.New("store is locked")

// Runner wires the store, the sync channel and the controllers from a
// validated configuration.
type Runner struct {
	logger *zap.Logger
	cfg    config.Config

	db      *bolt.DB
	repo    *db.BoltRepository
	redis   *redis.Client
	hub     *broadcast.Hub
	channel broadcast.Channel
	metrics *metrics.Metrics
	cloud   *core.Cloud
	admin   *admin.Controller
	closers []io.Closer
}

func NewRunner(ctx context.Context, logger *zap.Logger, cfg config.Config) (*Runner, error) {
	if err := cfg.Expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{logger: logger, cfg: cfg, metrics: metrics.NewMetrics()}
	if err := r.open(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

func (r *Runner) open(ctx context.Context) error {
	dbase, err := db.Connect(r.cfg.DBPath)
	if errors.Is(err, bolt.ErrTimeout) {
		return fmt.Errorf("cannot open %v: %w (another process owns the store: run `walltok serve` there and `walltok watch --remote` here)", r.cfg.DBPath, ErrStoreBusy)
	}
	if err != nil {
		return fmt.Errorf("cannot open %v: %w", r.cfg.DBPath, err)
	}
	r.db = dbase
	r.closers = append(r.closers, dbase)

	repo, err := db.NewRepository(dbase, r.logger)
	if err != nil {
		return err
	}
	r.repo = repo

	if r.cfg.RedisAddr != "" {
		r.redis = broadcast.OpenRedis(r.cfg.RedisAddr)
		r.closers = append(r.closers, r.redis)
		r.channel = r.endpoint()
		r.logger.Info("Using redis sync channel", zap.String("addr", r.cfg.RedisAddr))
	} else {
		r.hub = broadcast.NewHub(r.logger)
		r.channel = r.endpoint()
	}

	r.cloud = &core.Cloud{
		Repo:    repo,
		Channel: r.channel,
		Latency: r.cfg.Latency,
		Metrics: r.metrics,
		Logger:  r.logger,
	}

	sink, err := r.sink(ctx)
	if err != nil {
		return err
	}

	r.admin = admin.NewController(r.cloud, r.generator(ctx), sink, r.logger)

	return nil
}

// endpoint joins the sync channel with a fresh identity.
func (r *Runner) endpoint() broadcast.Channel {
	if r.redis != nil {
		return broadcast.NewRedis(r.redis, r.logger)
	}

	l := r.hub.Join()
	r.closers = append(r.closers, l)
	return l
}

func (r *Runner) generator(ctx context.Context) metadata.Generator {
	if r.cfg.GeminiAPIKey == "" {
		r.logger.Info("No GenAI API key configured, wallpapers get fallback metadata")
		return nil
	}

	g, err := metadata.NewGenAI(ctx, r.cfg.GeminiAPIKey, r.cfg.Model)
	if err != nil {
		r.logger.Warn("Cannot create GenAI client, wallpapers get fallback metadata", zap.Error(err))
		return nil
	}

	return g
}

func (r *Runner) sink(ctx context.Context) (fs.Sink, error) {
	switch r.cfg.Sink {
	case config.DirSink:
		return fs.DirSink{Dir: r.cfg.MediaDir, BaseURL: r.cfg.MediaBaseURL}, nil
	case config.S3Sink:
		store, err := s3.New(r.cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("s3 ensure bucket: %w", err)
		}
		return store, nil
	default:
		return fs.DataURLSink{}, nil
	}
}

func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = r.metrics.Close()

	return errors.Join(errs...)
}

func (r *Runner) Admin() *admin.Controller {
	return r.admin
}

// Serve exposes the cloud over HTTP until ctx is done.
func (r *Runner) Serve(ctx context.Context) error {
	mediaDir := ""
	if r.cfg.Sink == config.DirSink {
		mediaDir = r.cfg.MediaDir
	}

	srv := server.New(server.Options{
		Cloud:    r.cloud,
		Admin:    r.admin,
		Notifier: r.endpoint(),
		Store:    r.repo.ID(),
		MediaDir: mediaDir,
		Metrics:  r.metrics,
		Logger:   r.logger,
	})

	return srv.ListenAndServe(ctx, r.cfg.Addr)
}

// Feed opens a feed session on the local store. Its notifications come from a
// dedicated endpoint so it hears every other client, this process included.
func (r *Runner) Feed() *feed.Controller {
	return feed.NewController(r.cloud, r.endpoint(), feed.Options{
		PollInterval: r.cfg.PollInterval,
		Prefs:        r.repo,
		Metrics:      r.metrics,
		Logger:       r.logger,
	})
}

func (r *Runner) Import(ctx context.Context, source string) (int64, error) {
	start := time.Now()
	defer func() {
		r.logger.Info("Elapsed time", zap.Duration("elapsed", time.Since(start)))
	}()

	numWorkers := runtime.NumCPU()
	r.logger.Info("Determined number of workers", zap.Int("num_workers", numWorkers))

	importer := &admin.ConcurrentImporter{
		Admin:      r.admin,
		FileTypes:  fs.DefaultFileTypes,
		NumWorkers: numWorkers,
		Logger:     r.logger,
	}

	return importer.Import(ctx, source)
}

func (r *Runner) Sweep(ctx context.Context) (int, error) {
	return core.Sweep(ctx, r.cloud, r.logger)
}

func (r *Runner) List(ctx context.Context, category string) ([]models.Wallpaper, error) {
	snap, err := r.cloud.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	if category == "" {
		category = feed.All
	}
	return feed.Filter(snap.Wallpapers, category), nil
}
