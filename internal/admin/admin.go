package admin

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fedragon/walltok/internal/fs"
	"github.com/fedragon/walltok/internal/metadata"
	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

const (
	Author             = "Admin"
	DefaultDescription = "A beautiful wallpaper"
)

var ErrNoMedia = errors.New("a media url or local file is required")

// Cloud is the subset of core.Cloud the admin view needs.
type Cloud interface {
	FetchAll(ctx context.Context) (models.Snapshot, error)
	Push(ctx context.Context, w models.Wallpaper) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, patch models.Patch) error
}

// Draft is what the publishing form collects. Either URL or File is required;
// File wins when both are set.
type Draft struct {
	URL         string           `json:"url,omitempty"`
	File        string           `json:"file,omitempty"`
	Kind        models.MediaType `json:"type,omitempty"`
	Description string           `json:"description,omitempty"`
}

type Controller struct {
	cloud     Cloud
	generator metadata.Generator
	sink      fs.Sink
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.RWMutex
	library []models.Wallpaper
	loading bool
	lastID  int64
}

func NewController(cloud Cloud, generator metadata.Generator, sink fs.Sink, logger *zap.Logger) *Controller {
	if sink == nil {
		sink = fs.DataURLSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		cloud:     cloud,
		generator: metadata.WithFallback(generator, logger),
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Resolve turns a draft into a locator and a media kind.
func (c *Controller) Resolve(ctx context.Context, d Draft) (string, models.MediaType, error) {
	if d.File != "" {
		m, err := fs.Read(d.File)
		if err != nil {
			return "", "", err
		}
		return c.resolveMedia(ctx, m, d.Kind)
	}

	url := strings.TrimSpace(d.URL)
	if url == "" {
		return "", "", ErrNoMedia
	}

	kind := d.Kind
	if kind == "" {
		kind = fs.KindFromURL(url)
	}

	return url, kind, nil
}

func (c *Controller) resolveMedia(ctx context.Context, m fs.Media, kind models.MediaType) (string, models.MediaType, error) {
	if len(m.Data) == 0 {
		return "", "", ErrNoMedia
	}

	url, err := c.sink.Put(ctx, m)
	if err != nil {
		return "", "", err
	}
	if kind == "" {
		kind = m.Kind()
	}

	return url, kind, nil
}

// Publish resolves the media, asks for metadata, pushes the new wallpaper and
// refreshes the library. Resubmitting the same draft creates a new record.
func (c *Controller) Publish(ctx context.Context, d Draft) (models.Wallpaper, error) {
	url, kind, err := c.Resolve(ctx, d)
	if err != nil {
		return models.Wallpaper{}, err
	}

	return c.publish(ctx, url, kind, d.Description)
}

// PublishMedia is Publish for media already read into memory.
func (c *Controller) PublishMedia(ctx context.Context, m fs.Media, description string) (models.Wallpaper, error) {
	url, kind, err := c.resolveMedia(ctx, m, "")
	if err != nil {
		return models.Wallpaper{}, err
	}

	return c.publish(ctx, url, kind, description)
}

func (c *Controller) publish(ctx context.Context, url string, kind models.MediaType, description string) (models.Wallpaper, error) {
	if strings.TrimSpace(description) == "" {
		description = DefaultDescription
	}

	c.logger.Info("AI is analyzing media...", zap.String("kind", string(kind)))
	md, _ := c.generator.Generate(ctx, description)
	if md.Tags == nil {
		md.Tags = []string{}
	}

	now := c.now()
	w := models.Wallpaper{
		ID:          c.nextID(now),
		Type:        kind,
		URL:         url,
		Title:       md.Title,
		Description: md.Description,
		Author:      Author,
		Likes:       0,
		Tags:        md.Tags,
		CreatedAt:   now.UnixMilli(),
	}

	c.logger.Info("Syncing to cloud...", zap.String("id", w.ID), zap.String("title", w.Title))
	if err := c.cloud.Push(ctx, w); err != nil {
		return models.Wallpaper{}, err
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("Cannot refresh library after publishing", zap.Error(err))
	}

	return w, nil
}

// nextID derives the identifier from the wall clock. It is only unique within
// this controller: two clients publishing in the same millisecond collide.
func (c *Controller) nextID(now time.Time) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms := now.UnixMilli()
	if ms <= c.lastID {
		ms = c.lastID + 1
	}
	c.lastID = ms

	return strconv.FormatInt(ms, 10)
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	c.setLoading(true)

	if err := c.cloud.Delete(ctx, id); err != nil {
		c.setLoading(false)
		return err
	}

	return c.Refresh(ctx)
}

func (c *Controller) Update(ctx context.Context, id string, patch models.Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if err := c.cloud.Update(ctx, id, patch); err != nil {
		return err
	}

	return c.Refresh(ctx)
}

// Refresh reloads the library from the cloud.
func (c *Controller) Refresh(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	snap, err := c.cloud.FetchAll(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.library = snap.Wallpapers
	c.mu.Unlock()

	return nil
}

func (c *Controller) Library() []models.Wallpaper {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]models.Wallpaper(nil), c.library...)
}

func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.loading
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}
