// Package card decides, per feed position, whether heavy media is mounted and
// whether a video plays. At most three cards mount media and at most one plays.
package card

import (
	"context"
	"sync"

	"github.com/fedragon/walltok/internal/models"
)

type Tier int

const (
	Far Tier = iota
	Near
	Active
)

func (t Tier) String() string {
	switch t {
	case Active:
		return "active"
	case Near:
		return "near"
	default:
		return "far"
	}
}

func TierOf(index, active int) Tier {
	diff := index - active
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return Active
	case diff == 1:
		return Near
	default:
		return Far
	}
}

func (t Tier) MountsMedia() bool {
	return t != Far
}

type Playback int

const (
	None Playback = iota
	Play
	PauseAndRewind
)

func (p Playback) String() string {
	switch p {
	case Play:
		return "play"
	case PauseAndRewind:
		return "pause"
	default:
		return "none"
	}
}

func PlaybackFor(kind models.MediaType, tier Tier) Playback {
	if kind != models.Video {
		return None
	}

	switch tier {
	case Active:
		return Play
	case Near:
		return PauseAndRewind
	default:
		return None
	}
}

// State is the ephemeral per-card view state. It is never persisted nor
// reconciled with the store.
type State struct {
	mu      sync.Mutex
	liked   bool
	playing bool
	loaded  bool
}

func NewState() *State {
	return &State{playing: true}
}

func (s *State) ToggleLike() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.liked = !s.liked
	return s.liked
}

func (s *State) Liked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liked
}

func (s *State) Likes(w models.Wallpaper) int {
	if s.Liked() {
		return w.Likes + 1
	}
	return w.Likes
}

// Tap toggles playback of a mounted video and reports whether it now plays.
func (s *State) Tap(w models.Wallpaper, tier Tier) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.IsVideo() && tier.MountsMedia() {
		s.playing = !s.playing
	}
	return s.playing
}

// Follow aligns playback with the card's tier after the active index moved.
func (s *State) Follow(tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tier {
	case Active:
		s.playing = true
	case Near:
		s.playing = false
	}
}

func (s *State) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing
}

// MarkLoaded is called once the media element finished loading. A load
// failure never calls it, so the loading indicator stays.
func (s *State) MarkLoaded() {
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
}

func (s *State) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loaded
}

type View struct {
	Wallpaper models.Wallpaper
	Index     int
	Tier      Tier
	Mounted   bool
	Loading   bool
	Playback  Playback
	Playing   bool
	Liked     bool
	Likes     int
}

func Describe(index, active int, w models.Wallpaper, s *State) View {
	tier := TierOf(index, active)
	mounted := tier.MountsMedia()

	return View{
		Wallpaper: w,
		Index:     index,
		Tier:      tier,
		Mounted:   mounted,
		Loading:   mounted && !s.Loaded(),
		Playback:  PlaybackFor(w.Type, tier),
		Playing:   w.IsVideo() && mounted && s.Playing(),
		Liked:     s.Liked(),
		Likes:     s.Likes(w),
	}
}

type ShareData struct {
	Title string
	Text  string
	URL   string
}

// Sharer is a platform share capability.
type Sharer interface {
	Share(ctx context.Context, data ShareData) error
}

// Share is best-effort: a missing capability or a failure is ignored.
func Share(ctx context.Context, s Sharer, w models.Wallpaper) bool {
	if s == nil {
		return false
	}

	err := s.Share(ctx, ShareData{Title: w.Title, Text: w.Description, URL: w.URL})
	return err == nil
}

// Save returns the locator to open for download.
func Save(w models.Wallpaper) string {
	return w.URL
}
