package card

import (
	"context"
	"errors"
	"testing"

	"github.com/fedragon/walltok/internal/models"
)

func TestTierOf(t *testing.T) {
	cases := []struct {
		name     string
		index    int
		active   int
		expected Tier
	}{
		{name: "the active card", index: 3, active: 3, expected: Active},
		{name: "the card before", index: 2, active: 3, expected: Near},
		{name: "the card after", index: 4, active: 3, expected: Near},
		{name: "two away", index: 5, active: 3, expected: Far},
		{name: "far behind", index: 0, active: 3, expected: Far},
	}

	for _, c := range cases {
		if got := TierOf(c.index, c.active); got != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, got)
		}
	}
}

func TestWindowBounds(t *testing.T) {
	for active := 0; active < 10; active++ {
		var mounted, playing int
		for i := 0; i < 10; i++ {
			tier := TierOf(i, active)
			if tier.MountsMedia() {
				mounted++
			}
			if PlaybackFor(models.Video, tier) == Play {
				playing++
			}
		}

		if mounted > 3 {
			t.Errorf("Expected at most 3 mounted cards but got %v instead (active %v)", mounted, active)
		}
		if playing != 1 {
			t.Errorf("Expected exactly 1 playing video but got %v instead (active %v)", playing, active)
		}
	}
}

func TestPlaybackFor(t *testing.T) {
	cases := []struct {
		name     string
		kind     models.MediaType
		tier     Tier
		expected Playback
	}{
		{name: "active video plays", kind: models.Video, tier: Active, expected: Play},
		{name: "near video is paused and rewound", kind: models.Video, tier: Near, expected: PauseAndRewind},
		{name: "far video is not mounted", kind: models.Video, tier: Far, expected: None},
		{name: "images never play", kind: models.Image, tier: Active, expected: None},
	}

	for _, c := range cases {
		if got := PlaybackFor(c.kind, c.tier); got != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, got)
		}
	}
}

func TestStateLikesAreLocal(t *testing.T) {
	w := models.Wallpaper{ID: "1", Likes: 1240}
	s := NewState()

	if got := s.Likes(w); got != 1240 {
		t.Errorf("Expected 1240 but got %v instead", got)
	}
	s.ToggleLike()
	if got := s.Likes(w); got != 1241 {
		t.Errorf("Expected 1241 but got %v instead", got)
	}
	s.ToggleLike()
	if got := s.Likes(w); got != 1240 {
		t.Errorf("Expected 1240 but got %v instead", got)
	}
	if w.Likes != 1240 {
		t.Errorf("The record itself must never change")
	}
}

func TestStateTapAndFollow(t *testing.T) {
	video := models.Wallpaper{Type: models.Video}
	image := models.Wallpaper{Type: models.Image}
	s := NewState()

	if s.Tap(video, Active) {
		t.Errorf("Expected tapping a playing video to pause it")
	}
	if !s.Tap(video, Active) {
		t.Errorf("Expected tapping a paused video to resume it")
	}
	if !s.Tap(image, Active) {
		t.Errorf("Expected tapping an image to leave playback untouched")
	}

	s.Follow(Near)
	if s.Playing() {
		t.Errorf("Expected a near card to be paused")
	}
	s.Follow(Active)
	if !s.Playing() {
		t.Errorf("Expected the active card to play")
	}
}

func TestDescribe(t *testing.T) {
	w := models.Wallpaper{ID: "1", Type: models.Video, Likes: 3}
	s := NewState()

	far := Describe(0, 5, w, s)
	if far.Mounted || far.Loading || far.Playing {
		t.Errorf("Expected a far card to render a placeholder only but got %+v", far)
	}

	active := Describe(5, 5, w, s)
	if !active.Mounted || !active.Loading || active.Playback != Play {
		t.Errorf("Expected the active card to mount, load and play but got %+v", active)
	}

	s.MarkLoaded()
	if Describe(5, 5, w, s).Loading {
		t.Errorf("Expected loading to stop once the media loaded")
	}
}

type fakeSharer struct {
	err  error
	got  ShareData
	seen bool
}

func (f *fakeSharer) Share(_ context.Context, d ShareData) error {
	f.seen = true
	f.got = d
	return f.err
}

func TestShare(t *testing.T) {
	w := models.Wallpaper{Title: "Forest Path", Description: "Fog", URL: "https://picsum.photos/id/10/1080/1920"}

	if Share(context.Background(), nil, w) {
		t.Errorf("Expected no share without a capability")
	}

	failing := &fakeSharer{err: errors.New("cancelled")}
	if Share(context.Background(), failing, w) || !failing.seen {
		t.Errorf("Expected a failed share to be attempted and ignored")
	}

	ok := &fakeSharer{}
	if !Share(context.Background(), ok, w) {
		t.Errorf("Expected share to succeed")
	}
	if ok.got.URL != w.URL || ok.got.Title != w.Title || ok.got.Text != w.Description {
		t.Errorf("Unexpected share data %+v", ok.got)
	}

	if Save(w) != w.URL {
		t.Errorf("Expected save to open the source locator")
	}
}
