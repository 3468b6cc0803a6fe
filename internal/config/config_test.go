package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fedragon/walltok/internal/storage/s3"

	"github.com/mitchellh/go-homedir"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		config  Config
		invalid bool
	}{
		{name: "defaults", config: Config{DBPath: "walltok.db"}},
		{name: "missing database", config: Config{}, invalid: true},
		{name: "negative latency", config: Config{DBPath: "walltok.db", Latency: -time.Second}, invalid: true},
		{name: "negative poll interval", config: Config{DBPath: "walltok.db", PollInterval: -time.Second}, invalid: true},
		{name: "dir sink without directory", config: Config{DBPath: "walltok.db", Sink: DirSink}, invalid: true},
		{name: "dir sink", config: Config{DBPath: "walltok.db", Sink: DirSink, MediaDir: "media"}},
		{name: "s3 sink without bucket", config: Config{DBPath: "walltok.db", Sink: S3Sink, S3: s3.Config{Endpoint: "localhost:9000"}}, invalid: true},
		{name: "s3 sink", config: Config{DBPath: "walltok.db", Sink: S3Sink, S3: s3.Config{Endpoint: "localhost:9000", Bucket: "media"}}},
		{name: "unknown sink", config: Config{DBPath: "walltok.db", Sink: "ftp"}, invalid: true},
	}

	for _, c := range cases {
		err := c.config.Validate()
		if c.invalid && !errors.Is(err, ErrInvalid) {
			t.Errorf("%v\n\tExpected ErrInvalid but got %v instead", c.name, err)
		}
		if !c.invalid && err != nil {
			t.Errorf("%v\n\tExpected no error but got %v instead", c.name, err)
		}
	}
}

func TestExpand(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory")
	}

	c := Config{DBPath: "~/walltok.db", MediaDir: "/var/media"}
	if err := c.Expand(); err != nil {
		t.Fatal(err)
	}

	if c.DBPath != filepath.Join(home, "walltok.db") {
		t.Errorf("Expected the database path under %v but got %v instead", home, c.DBPath)
	}
	if c.MediaDir != "/var/media" {
		t.Errorf("Expected absolute paths to be left alone but got %v instead", c.MediaDir)
	}

	bad := Config{DBPath: "~someone/walltok.db"}
	if err := bad.Expand(); err == nil || !strings.Contains(err.Error(), ErrInvalid.Error()) {
		t.Errorf("Expected user-specific home paths to be rejected but got %v", err)
	}
}
