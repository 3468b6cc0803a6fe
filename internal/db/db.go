package db

import (
	"time"

	"github.com/boltdb/bolt"
	"github.com/fedragon/walltok/internal/models"
	"github.com/google/uuid"
)

const (
	WallpapersKey   = "walltok_wallpapers"
	RevisionKey     = "walltok_revision"
	TutorialSeenKey = "walltok_tutorial_seen"
	StoreKey        = "walltok_store"
)

var bucketName = []byte("walltok")

func Connect(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
}

// Init creates the bucket and gives the store its identity. A fresh file gets
// a new identity, so revisions of two stores are never compared.
func Init(db *bolt.DB) (string, error) {
	var id string
	err := db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}

		if existing := bucket.Get([]byte(StoreKey)); existing != nil {
			id = string(existing)
			return nil
		}

		id = uuid.NewString()
		return bucket.Put([]byte(StoreKey), []byte(id))
	})

	return id, err
}

// InitialData is written on first access when the store holds no records.
func InitialData(now time.Time) []models.Wallpaper {
	ms := now.UnixMilli()

	return []models.Wallpaper{
		{
			ID:          "1",
			Type:        models.Video,
			URL:         "https://assets.mixkit.co/videos/preview/mixkit-starry-sky-at-night-over-a-mountain-4152-large.mp4",
			Title:       "Starry Night",
			Description: "A beautiful night sky with flowing stars over a dark mountain.",
			Author:      "CosmosExplorer",
			Likes:       1240,
			Tags:        []string{"space", "nature", "dark"},
			CreatedAt:   ms - 1000000,
		},
		{
			ID:          "2",
			Type:        models.Image,
			URL:         "https://picsum.photos/id/10/1080/1920",
			Title:       "Forest Path",
			Description: "Serene walk through an ancient foggy forest.",
			Author:      "NatureLover",
			Likes:       850,
			Tags:        []string{"nature", "forest", "calm"},
			CreatedAt:   ms - 2000000,
		},
	}
}
