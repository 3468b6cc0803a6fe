package app

import (
	"context"
	"errors"

	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/feed"

	"go.uber.org/zap"
)

type View int

const (
	Feed View = iota
	Admin
)

func (v View) String() string {
	if v == Admin {
		return "admin"
	}
	return "feed"
}

const AdminFragment = "#/admin"

// ViewFromFragment picks the view from the URL fragment. Anything other than
// the admin fragment, including nothing at all, opens the feed.
func ViewFromFragment(fragment string) View {
	if fragment == AdminFragment {
		return Admin
	}
	return Feed
}

var ErrNoAdmin = errors.New("admin view is not available")

// App is one client session: the selected view plus the controller behind it.
type App struct {
	view   View
	feed   *feed.Controller
	admin  *admin.Controller
	logger *zap.Logger
}

func New(fragment string, feedCtrl *feed.Controller, adminCtrl *admin.Controller, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		view:   ViewFromFragment(fragment),
		feed:   feedCtrl,
		admin:  adminCtrl,
		logger: logger,
	}
	a.logger.Info("Opening view", zap.Stringer("view", a.view))

	return a
}

func (a *App) View() View {
	return a.view
}

// Navigate switches view after a fragment change.
func (a *App) Navigate(fragment string) View {
	next := ViewFromFragment(fragment)
	if next != a.view {
		a.logger.Info("Switching view", zap.Stringer("from", a.view), zap.Stringer("to", next))
		a.view = next
	}
	return a.view
}

func (a *App) Feed() *feed.Controller {
	return a.feed
}

func (a *App) Admin() *admin.Controller {
	return a.admin
}

// Run drives the selected view until ctx is done. The feed runs its sync
// loop; the admin view loads its library once.
func (a *App) Run(ctx context.Context) error {
	if a.view == Admin {
		if a.admin == nil {
			return ErrNoAdmin
		}
		return a.admin.Refresh(ctx)
	}

	return a.feed.Run(ctx)
}
