package feed

import "github.com/fedragon/walltok/internal/models"

// All is the category sentinel meaning no filter.
const All = "All"

// Categories lists All followed by every non-empty tag in first-seen order.
func Categories(ws []models.Wallpaper) []string {
	seen := map[string]bool{All: true}
	categories := []string{All}

	for _, w := range ws {
		for _, tag := range w.Tags {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			categories = append(categories, tag)
		}
	}

	return categories
}

// Filter returns the wallpapers tagged with category, or all of them for All.
// The input is never modified.
func Filter(ws []models.Wallpaper, category string) []models.Wallpaper {
	if category == All {
		return ws
	}

	filtered := make([]models.Wallpaper, 0, len(ws))
	for _, w := range ws {
		if w.HasTag(category) {
			filtered = append(filtered, w)
		}
	}

	return filtered
}
