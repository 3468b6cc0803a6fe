package feed

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/card"
	"github.com/fedragon/walltok/internal/core"
	"github.com/fedragon/walltok/internal/db"
	"github.com/fedragon/walltok/internal/metrics"
	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultSplashDelay  = 1200 * time.Millisecond
)

type Source interface {
	FetchAll(ctx context.Context) (models.Snapshot, error)
}

type Notifier interface {
	Subscribe(ctx context.Context) (<-chan broadcast.Message, error)
}

type Cause int

const (
	Mount Cause = iota
	Notification
	Poll
)

func (c Cause) String() string {
	switch c {
	case Mount:
		return "mount"
	case Notification:
		return "notification"
	default:
		return "poll"
	}
}

// Trigger asks for a refresh. Store and Revision are set when the trigger
// announces a revision of a given store.
type Trigger struct {
	Cause    Cause
	Store    string
	Revision uint64
}

// coalesce folds a trigger into one already waiting. A pending fetch-forcing
// trigger stays forcing, and the newest announced revision wins. Revisions of
// different stores don't compare, so the latest store announcement replaces
// the queued one.
func coalesce(queued, next Trigger) Trigger {
	merged := queued
	switch {
	case next.Store != merged.Store:
		merged.Store = next.Store
		merged.Revision = next.Revision
	case next.Revision > merged.Revision:
		merged.Revision = next.Revision
	}
	if next.Cause != Notification {
		merged.Cause = next.Cause
	}
	if queued.Cause == Mount {
		merged.Cause = Mount
	}

	return merged
}

type Options struct {
	PollInterval time.Duration
	SplashDelay  time.Duration
	Prefs        db.Prefs
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// View is a consistent copy of the session state for presentation.
type View struct {
	Category        string
	Categories      []string
	Wallpapers      []models.Wallpaper
	ActiveIndex     int
	Store           string
	Revision        uint64
	Syncing         bool
	SplashVisible   bool
	TutorialVisible bool
	Immersive       bool
}

// Controller owns one client's feed session. Mount, sync notifications and
// the poll timer all converge on a single refresh loop.
type Controller struct {
	source   Source
	notifier Notifier
	opts     Options
	logger   *zap.Logger
	mx       *metrics.Metrics

	mu          sync.RWMutex
	all         []models.Wallpaper
	store       string
	revision    uint64
	loaded      bool
	category    string
	active      int
	syncing     bool
	splash      bool
	tutorial    bool
	immersive   bool
	cards       map[string]*card.State
	refreshes   int
	splashTimer *time.Timer
	listeners   []func(View)
}

func NewController(source Source, notifier Notifier, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.SplashDelay <= 0 {
		opts.SplashDelay = DefaultSplashDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		source:   source,
		notifier: notifier,
		opts:     opts,
		logger:   opts.Logger,
		mx:       opts.Metrics,
		category: All,
		splash:   true,
		cards:    make(map[string]*card.State),
	}

	if opts.Prefs != nil {
		seen, err := opts.Prefs.Seen(db.TutorialSeenKey)
		if err != nil {
			c.logger.Warn("Cannot read tutorial flag", zap.Error(err))
		}
		c.tutorial = !seen
	}

	return c
}

// OnChange registers fn to be called after every state change.
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Run drives the session until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.stopSplashTimer()

	mount := make(chan Trigger, 1)
	mount <- Trigger{Cause: Mount}
	close(mount)

	pending := c.pump(ctx, core.Merge(ctx, mount, c.notifications(ctx), c.polls(ctx)))

	for t := range pending {
		if ctx.Err() != nil {
			continue
		}
		c.handle(ctx, t)
	}

	return ctx.Err()
}

// pump keeps at most one trigger waiting while a refresh is in flight.
func (c *Controller) pump(ctx context.Context, triggers <-chan Trigger) <-chan Trigger {
	pending := make(chan Trigger, 1)

	go func() {
		defer close(pending)

		for t := range triggers {
			select {
			case pending <- t:
			default:
				select {
				case queued := <-pending:
					pending <- coalesce(queued, t)
				default:
					pending <- t
				}
				_ = c.mx.Increment("feed.coalesced")
			}
		}
	}()

	return pending
}

func (c *Controller) notifications(ctx context.Context) <-chan Trigger {
	out := make(chan Trigger)

	if c.notifier == nil {
		close(out)
		return out
	}

	messages, err := c.notifier.Subscribe(ctx)
	if err != nil {
		c.logger.Warn("Cannot subscribe to sync channel, relying on polling", zap.Error(err))
		close(out)
		return out
	}

	go func() {
		defer close(out)

		for m := range messages {
			if !m.IsSyncUpdate() {
				continue
			}

			c.logger.Debug("Cloud update detected, syncing...",
				zap.String("store", m.Store), zap.Uint64("revision", m.Revision))
			select {
			case <-ctx.Done():
				return
			case out <- Trigger{Cause: Notification, Store: m.Store, Revision: m.Revision}:
			}
		}
	}()

	return out
}

func (c *Controller) polls(ctx context.Context) <-chan Trigger {
	out := make(chan Trigger)

	go func() {
		defer close(out)

		ticker := time.NewTicker(c.opts.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case <-ctx.Done():
					return
				case out <- Trigger{Cause: Poll}:
				}
			}
		}
	}()

	return out
}

func (c *Controller) handle(ctx context.Context, t Trigger) {
	if t.Cause == Notification && t.Revision > 0 {
		c.mu.RLock()
		stale := c.loaded && t.Store == c.store && t.Revision <= c.revision
		c.mu.RUnlock()

		if stale {
			c.logger.Debug("Collapsing notification for an applied revision", zap.Uint64("revision", t.Revision))
			_ = c.mx.Increment("feed.collapsed")
			return
		}
	}

	// a poll is the recovery path, so whatever it reads wins
	if err := c.refresh(ctx, t.Cause != Mount, t.Cause == Poll); err != nil {
		c.logger.Warn("Refresh failed", zap.Stringer("cause", t.Cause), zap.Error(err))
	}
}

// Refresh fetches the full snapshot and replaces the session's records.
// A non-silent refresh raises the syncing flag while it runs.
func (c *Controller) Refresh(ctx context.Context, silent bool) error {
	return c.refresh(ctx, silent, false)
}

func (c *Controller) refresh(ctx context.Context, silent, force bool) error {
	stop := c.mx.Record("feed.refresh")
	defer func() { _ = stop() }()

	if !silent {
		c.update(func() { c.syncing = true })
	}

	snap, err := c.source.FetchAll(ctx)

	c.update(func() {
		c.syncing = false
		if err == nil {
			c.apply(snap, force)
		}
	})

	return err
}

// apply must be called with mu held. Unless forced, a snapshot older than
// the applied one of the same store is discarded.
func (c *Controller) apply(snap models.Snapshot, force bool) {
	sameStore := snap.Store == c.store
	if c.loaded && sameStore && snap.Revision < c.revision && !force {
		c.logger.Debug("Discarding stale snapshot",
			zap.Uint64("revision", snap.Revision), zap.Uint64("applied", c.revision))
		_ = c.mx.Increment("feed.stale")
		return
	}
	if c.loaded && !sameStore {
		c.logger.Info("Store changed, replacing records",
			zap.String("from", c.store), zap.String("to", snap.Store), zap.Uint64("revision", snap.Revision))
	}

	before := len(Filter(c.all, c.category))
	first := !c.loaded

	c.all = snap.Wallpapers
	c.store = snap.Store
	c.revision = snap.Revision
	c.loaded = true
	c.refreshes++
	_ = c.mx.Increment("feed.refreshed")

	if len(Filter(c.all, c.category)) != before {
		c.active = 0
	}

	live := make(map[string]bool, len(c.all))
	for _, w := range c.all {
		live[w.ID] = true
	}
	for id := range c.cards {
		if !live[id] {
			delete(c.cards, id)
		}
	}
	c.followActive()

	if first {
		c.splashTimer = time.AfterFunc(c.opts.SplashDelay, func() {
			c.update(func() { c.splash = false })
		})
	}
}

func (c *Controller) stopSplashTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.splashTimer != nil {
		c.splashTimer.Stop()
	}
}

// followActive must be called with mu held.
func (c *Controller) followActive() {
	for i, w := range Filter(c.all, c.category) {
		if st, ok := c.cards[w.ID]; ok {
			st.Follow(card.TierOf(i, c.active))
		}
	}
}

// SelectCategory switches the filter and always resets the active index.
func (c *Controller) SelectCategory(category string) {
	if category == "" {
		category = All
	}

	c.update(func() {
		c.category = category
		c.active = 0
		c.followActive()
	})
}

// Scroll derives the active index from the scroll offset, rounding to the
// closest full-screen card. Scrolling dismisses the tutorial.
func (c *Controller) Scroll(offset, viewportHeight float64) {
	c.DismissTutorial()

	if viewportHeight <= 0 {
		return
	}

	index := int(math.Round(offset / viewportHeight))

	c.mu.RLock()
	index = clamp(index, len(Filter(c.all, c.category)))
	same := index == c.active
	c.mu.RUnlock()
	if same {
		return
	}

	c.update(func() {
		c.active = index
		c.followActive()
	})
}

// clamp keeps index within [0, n). An empty feed has index 0.
func clamp(index, n int) int {
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}

	return index
}

func (c *Controller) DismissTutorial() {
	c.mu.RLock()
	visible := c.tutorial
	c.mu.RUnlock()
	if !visible {
		return
	}

	c.update(func() { c.tutorial = false })

	if c.opts.Prefs != nil {
		if err := c.opts.Prefs.MarkSeen(db.TutorialSeenKey); err != nil {
			c.logger.Warn("Cannot persist tutorial flag", zap.Error(err))
		}
	}
}

func (c *Controller) ToggleImmersive() {
	c.update(func() { c.immersive = !c.immersive })
}

// Card returns the ephemeral view state of a wallpaper, creating it on first use.
func (c *Controller) Card(id string) *card.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.cards[id]
	if !ok {
		st = card.NewState()
		c.cards[id] = st
	}

	return st
}

// Cards describes every card in the filtered view.
func (c *Controller) Cards() []card.View {
	c.mu.Lock()
	defer c.mu.Unlock()

	filtered := Filter(c.all, c.category)
	views := make([]card.View, 0, len(filtered))
	for i, w := range filtered {
		st, ok := c.cards[w.ID]
		if !ok {
			st = card.NewState()
			st.Follow(card.TierOf(i, c.active))
			c.cards[w.ID] = st
		}
		views = append(views, card.Describe(i, c.active, w, st))
	}

	return views
}

// Refreshes counts the snapshots applied so far.
func (c *Controller) Refreshes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.refreshes
}

func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.view()
}

func (c *Controller) view() View {
	return View{
		Category:        c.category,
		Categories:      Categories(c.all),
		Wallpapers:      append([]models.Wallpaper(nil), Filter(c.all, c.category)...),
		ActiveIndex:     c.active,
		Store:           c.store,
		Revision:        c.revision,
		Syncing:         c.syncing,
		SplashVisible:   c.splash,
		TutorialVisible: c.tutorial,
		Immersive:       c.immersive,
	}
}

func (c *Controller) update(change func()) {
	c.mu.Lock()
	change()
	v := c.view()
	listeners := make([]func(View), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}
