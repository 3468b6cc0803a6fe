package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestHash(t *testing.T) {
	workdir := t.TempDir()
	doge := writeFile(t, workdir, "doge.jpg", "such wow")
	same := writeFile(t, workdir, "same-doge.jpg", "such wow")
	grumpy := writeFile(t, workdir, "grumpy-cat.jpg", "no")

	cases := []struct {
		name     string
		pathA    string
		pathB    string
		expected bool
	}{
		{
			name:     "hashing the same file twice returns the same value",
			pathA:    doge,
			pathB:    doge,
			expected: true,
		},
		{
			name:     "hashing two files with same content but different name returns the same value",
			pathA:    doge,
			pathB:    same,
			expected: true,
		},
		{
			name:     "hashing two different files returns different values",
			pathA:    doge,
			pathB:    grumpy,
			expected: false,
		},
	}

	for _, c := range cases {
		a, err := Read(c.pathA)
		if err != nil {
			t.Error(err)
		}
		b, err := Read(c.pathB)
		if err != nil {
			t.Error(err)
		}

		equal := a.Hash() == b.Hash()
		if equal != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, equal)
		}
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		expected string
	}{
		{name: "mp4 is a video", url: "https://example.com/media.mp4", expected: "video"},
		{name: "extension match ignores case", url: "https://example.com/MEDIA.WebM", expected: "video"},
		{name: "ogg is a video", url: "https://example.com/media.ogg", expected: "video"},
		{name: "jpg is an image", url: "https://example.com/media.jpg", expected: "image"},
		{name: "no extension is an image", url: "https://picsum.photos/id/10/1080/1920", expected: "image"},
	}

	for _, c := range cases {
		if got := string(KindFromURL(c.url)); got != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, got)
		}
	}
}

func TestReadDetectsVideo(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clip.mp4", "not really a video")

	m, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	if m.Kind() != "video" {
		t.Errorf("Expected video but got %v (%v) instead", m.Kind(), m.ContentType)
	}
}

func BenchmarkHash(b *testing.B) {
	m := Media{Data: make([]byte, 1<<20)}

	for i := 0; i < b.N; i++ {
		_ = m.Hash()
	}
}
