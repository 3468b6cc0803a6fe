package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fedragon/walltok/internal/storage/s3"

	"github.com/mitchellh/go-homedir"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	DataSink = "data"
	DirSink  = "dir"
	S3Sink   = "s3"
)

type Config struct {
	DBPath       string
	Addr         string
	RedisAddr    string
	GeminiAPIKey string
	Model        string
	Latency      time.Duration
	PollInterval time.Duration
	Sink         string
	MediaDir     string
	MediaBaseURL string
	S3           s3.Config
	Verbose      bool
}

// Expand resolves `~` in every path setting.
func (c *Config) Expand() error {
	for _, p := range []*string{&c.DBPath, &c.MediaDir} {
		if *p == "" {
			continue
		}

		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		*p = expanded
	}

	return nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: database path is required", ErrInvalid)
	}
	if c.Latency < 0 {
		return fmt.Errorf("%w: latency must not be negative", ErrInvalid)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll interval must not be negative", ErrInvalid)
	}

	switch c.Sink {
	case "", DataSink:
	case DirSink:
		if c.MediaDir == "" {
			return fmt.Errorf("%w: the %s sink needs a media directory", ErrInvalid, DirSink)
		}
	case S3Sink:
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("%w: the %s sink needs an endpoint and a bucket", ErrInvalid, S3Sink)
		}
	default:
		return fmt.Errorf("%w: unknown media sink %q", ErrInvalid, c.Sink)
	}

	return nil
}
