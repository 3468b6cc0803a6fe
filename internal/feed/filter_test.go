package feed

import (
	"reflect"
	"testing"

	"github.com/fedragon/walltok/internal/models"
)

var seed = []models.Wallpaper{
	{ID: "1", Title: "Starry Night", Tags: []string{"space", "nature"}},
	{ID: "2", Title: "Forest Path", Tags: []string{"nature", "forest"}},
}

func TestFilter(t *testing.T) {
	cases := []struct {
		name     string
		category string
		expected []string
	}{
		{name: "All yields every record", category: All, expected: []string{"1", "2"}},
		{name: "a shared tag yields both records", category: "nature", expected: []string{"1", "2"}},
		{name: "a specific tag yields exactly the matching record", category: "forest", expected: []string{"2"}},
		{name: "an unknown tag yields nothing", category: "ocean", expected: []string{}},
	}

	for _, c := range cases {
		got := []string{}
		for _, w := range Filter(seed, c.category) {
			got = append(got, w.ID)
		}

		if !reflect.DeepEqual(got, c.expected) {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, got)
		}
	}
}

func TestFilterMatchesTagMembership(t *testing.T) {
	for _, category := range Categories(seed) {
		filtered := Filter(seed, category)

		var expected int
		for _, w := range seed {
			if category == All || w.HasTag(category) {
				expected++
			}
		}

		if len(filtered) != expected {
			t.Errorf("Category %v: expected %v records but got %v instead", category, expected, len(filtered))
		}
		for _, w := range filtered {
			if category != All && !w.HasTag(category) {
				t.Errorf("Category %v: record %v does not carry the tag", category, w.ID)
			}
		}
	}
}

func TestCategories(t *testing.T) {
	ws := append([]models.Wallpaper{{ID: "3", Tags: []string{"", "space", "dark", "dark"}}}, seed...)

	expected := []string{All, "space", "dark", "nature", "forest"}
	if got := Categories(ws); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v but got %v instead", expected, got)
	}
}
