package metadata

import (
	"context"
	"errors"

	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

var (
	ErrEmptyResponse = errors.New("generator returned no metadata")
	ErrNoTitle       = errors.New("generated metadata has no title")
)

type Generator interface {
	Generate(ctx context.Context, description string) (models.Metadata, error)
}

// Fallback is substituted whenever generation fails.
func Fallback() models.Metadata {
	return models.Metadata{
		Title:       "Untitled Wallpaper",
		Description: "No description provided.",
		Tags:        []string{"wallpaper"},
	}
}

type fallback struct {
	next   Generator
	logger *zap.Logger
}

// WithFallback never fails: errors from next, or a nil next, yield Fallback().
func WithFallback(next Generator, logger *zap.Logger) Generator {
	return &fallback{next: next, logger: logger}
}

func (f *fallback) Generate(ctx context.Context, description string) (models.Metadata, error) {
	if f.next == nil {
		return Fallback(), nil
	}

	md, err := f.next.Generate(ctx, description)
	if err != nil {
		f.logger.Warn("Failed to generate metadata, using fallback", zap.Error(err))
		return Fallback(), nil
	}

	return md, nil
}

// Static always returns the same metadata.
type Static models.Metadata

func (s Static) Generate(ctx context.Context, _ string) (models.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return models.Metadata{}, err
	}

	return models.Metadata(s), nil
}
