package models

import (
	"errors"
	"strings"
)

type MediaType string

const (
	Image MediaType = "image"
	Video MediaType = "video"
)

var ErrNegativeLikes = errors.New("like count cannot be negative")

// Wallpaper is a single media item. Its JSON shape is the persisted and wire format.
type Wallpaper struct {
	ID          string    `json:"id"`
	Type        MediaType `json:"type"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Likes       int       `json:"likes"`
	Tags        []string  `json:"tags"`
	CreatedAt   int64     `json:"createdAt"`
}

func (w Wallpaper) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

func (w Wallpaper) IsVideo() bool {
	return w.Type == Video
}

// Snapshot is the full record sequence as read at a given store revision.
// Revisions only compare between snapshots of the same Store.
type Snapshot struct {
	Store      string      `json:"store,omitempty"`
	Revision   uint64      `json:"revision"`
	Wallpapers []Wallpaper `json:"wallpapers"`
}

type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Patch holds a partial update; nil fields are left untouched.
type Patch struct {
	Type        *MediaType `json:"type,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Likes       *int       `json:"likes,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

func (p Patch) Validate() error {
	if p.Likes != nil && *p.Likes < 0 {
		return ErrNegativeLikes
	}

	return nil
}

func (p Patch) Apply(w Wallpaper) Wallpaper {
	if p.Type != nil {
		w.Type = *p.Type
	}
	if p.URL != nil {
		w.URL = *p.URL
	}
	if p.Title != nil {
		w.Title = *p.Title
	}
	if p.Description != nil {
		w.Description = *p.Description
	}
	if p.Likes != nil {
		w.Likes = *p.Likes
	}
	if p.Tags != nil {
		w.Tags = append([]string(nil), p.Tags...)
	}

	return w
}

// ParseMediaType accepts "image" or "video" in any case.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case Image:
		return Image, true
	case Video:
		return Video, true
	}

	return "", false
}
