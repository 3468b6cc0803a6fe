package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/fedragon/walltok/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failing struct{}

func (failing) Generate(context.Context, string) (models.Metadata, error) {
	return models.Metadata{}, errors.New("quota exceeded")
}

func TestWithFallback(t *testing.T) {
	good := Static{Title: "Nebula", Description: "Purple dust", Tags: []string{"space"}}

	cases := []struct {
		name     string
		next     Generator
		expected models.Metadata
	}{
		{name: "generator errors yield the fallback", next: failing{}, expected: Fallback()},
		{name: "no generator yields the fallback", next: nil, expected: Fallback()},
		{name: "successful generation passes through", next: good, expected: models.Metadata(good)},
	}

	for _, c := range cases {
		md, err := WithFallback(c.next, zap.NewNop()).Generate(context.Background(), "anything")
		require.NoError(t, err, c.name)
		assert.Equal(t, c.expected, md, c.name)
	}
}

func TestFallbackPayload(t *testing.T) {
	md := Fallback()

	assert.Equal(t, "Untitled Wallpaper", md.Title)
	assert.Equal(t, "No description provided.", md.Description)
	assert.Equal(t, []string{"wallpaper"}, md.Tags)
}

func TestParse(t *testing.T) {
	md, err := Parse(`{"title":"Golden Waves","description":"Sunset surf","tags":["ocean","sunset","relax"]}`)
	require.NoError(t, err)
	assert.Equal(t, "Golden Waves", md.Title)
	assert.Equal(t, []string{"ocean", "sunset", "relax"}, md.Tags)

	untagged, err := Parse(`{"title":"Golden Waves","description":"Sunset surf"}`)
	require.NoError(t, err)
	assert.NotNil(t, untagged.Tags, "missing tags are stored as an empty list")
	assert.Empty(t, untagged.Tags)

	_, err = Parse(`{"description":"Sunset surf","tags":["ocean"]}`)
	assert.ErrorIs(t, err, ErrNoTitle)

	_, err = Parse("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = Parse("{nope")
	assert.Error(t, err)
}

func TestNewGenAIRequiresKey(t *testing.T) {
	_, err := NewGenAI(context.Background(), "", "")
	assert.Error(t, err)
}

func TestPromptQuotesDescription(t *testing.T) {
	assert.Contains(t, Prompt("misty forest"), `"misty forest"`)
}
