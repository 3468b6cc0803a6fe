package fs

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Sink turns a local media file into a source locator for a wallpaper.
type Sink interface {
	Put(ctx context.Context, m Media) (string, error)
}

// DataURLSink embeds the content in the locator itself.
type DataURLSink struct{}

func (DataURLSink) Put(ctx context.Context, m Media) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return fmt.Sprintf("data:%s;base64,%s", m.ContentType, base64.StdEncoding.EncodeToString(m.Data)), nil
}

// DirSink stores files under Dir with content-addressed names, so re-uploading
// the same bytes reuses the same file. Locators are BaseURL + name.
type DirSink struct {
	Dir     string
	BaseURL string
}

func (s DirSink) Name(m Media) string {
	return m.Hash() + strings.ToLower(filepath.Ext(m.Name))
}

func (s DirSink) Put(ctx context.Context, m Media) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := os.Stat(s.Dir); os.IsNotExist(err) {
		if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
			return "", fmt.Errorf("unable to create media directory %v: %w", s.Dir, err)
		}
	}

	name := s.Name(m)
	target := filepath.Join(s.Dir, name)

	if _, err := os.Stat(target); err != nil {
		if err := atomic.WriteFile(target, bytes.NewReader(m.Data)); err != nil {
			return "", fmt.Errorf("cannot atomically write %v: %w", target, err)
		}
	}

	return strings.TrimSuffix(s.BaseURL, "/") + "/" + name, nil
}
