package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fedragon/walltok/internal/fs"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL prefixes object keys in returned locators; defaults to the endpoint.
	PublicURL string
}

// Storage is an fs.Sink uploading media to an S3-compatible bucket.
type Storage struct {
	cfg    Config
	client *minio.Client
}

func New(cfg Config) (*Storage, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")

	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &Storage{cfg: cfg, client: cl}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *Storage) Key(m fs.Media) string {
	return "wallpapers/" + fs.DirSink{}.Name(m)
}

func (s *Storage) Put(ctx context.Context, m fs.Media) (string, error) {
	key := s.Key(m)

	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(m.Data), int64(len(m.Data)),
		minio.PutObjectOptions{ContentType: m.ContentType})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}

	return s.URL(key), nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{})
}

func (s *Storage) URL(key string) string {
	base := s.cfg.PublicURL
	if base == "" {
		base = s.client.EndpointURL().String()
	}

	return strings.TrimSuffix(base, "/") + "/" + s.cfg.Bucket + "/" + key
}
