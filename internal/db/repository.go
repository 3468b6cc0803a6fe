package db

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fedragon/walltok/internal/models"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var (
	ErrDuplicateID = errors.New("a wallpaper with this id already exists")
	errNoBucket    = fmt.Errorf("bucket %s doesn't exist", string(bucketName))
)

// Repository is the persisted wallpaper collection. Every mutation returns the
// store revision it produced.
type Repository interface {
	// ID identifies the store the revisions belong to.
	ID() string
	FetchAll(ctx context.Context) (models.Snapshot, error)
	Insert(ctx context.Context, w models.Wallpaper) (uint64, error)
	Delete(ctx context.Context, id string) (uint64, error)
	Update(ctx context.Context, id string, patch models.Patch) (uint64, error)
}

// Prefs stores boolean client flags under fixed keys.
type Prefs interface {
	Seen(key string) (bool, error)
	MarkSeen(key string) error
}

type BoltRepository struct {
	id     string
	db     *bolt.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewRepository(db *bolt.DB, logger *zap.Logger) (*BoltRepository, error) {
	id, err := Init(db)
	if err != nil {
		return nil, err
	}

	return &BoltRepository{
		id:     id,
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (r *BoltRepository) ID() string {
	return r.id
}

func (r *BoltRepository) FetchAll(ctx context.Context) (models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.Snapshot{}, err
	}

	var snap models.Snapshot
	var found bool

	err := r.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}

		var err error
		snap, found, err = read(bucket)
		return err
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	if found {
		snap.Store = r.id
		return snap, nil
	}

	// first run: seed, unless another writer got there in between
	err = r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)

		var err error
		snap, found, err = read(bucket)
		if err != nil || found {
			return err
		}

		r.logger.Info("Seeding wallpaper store with default data")
		snap = models.Snapshot{Wallpapers: InitialData(r.now())}

		return write(bucket, snap)
	})
	snap.Store = r.id

	return snap, err
}

func (r *BoltRepository) Insert(ctx context.Context, w models.Wallpaper) (uint64, error) {
	return r.mutate(ctx, func(ws []models.Wallpaper) ([]models.Wallpaper, bool, error) {
		for _, x := range ws {
			if x.ID == w.ID {
				return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, w.ID)
			}
		}

		return append([]models.Wallpaper{w}, ws...), true, nil
	})
}

func (r *BoltRepository) Delete(ctx context.Context, id string) (uint64, error) {
	return r.mutate(ctx, func(ws []models.Wallpaper) ([]models.Wallpaper, bool, error) {
		filtered := make([]models.Wallpaper, 0, len(ws))
		for _, x := range ws {
			if x.ID != id {
				filtered = append(filtered, x)
			}
		}

		return filtered, len(filtered) != len(ws), nil
	})
}

func (r *BoltRepository) Update(ctx context.Context, id string, patch models.Patch) (uint64, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}

	return r.mutate(ctx, func(ws []models.Wallpaper) ([]models.Wallpaper, bool, error) {
		for i, x := range ws {
			if x.ID == id {
				ws[i] = patch.Apply(x)
				return ws, true, nil
			}
		}

		return ws, false, nil
	})
}

// mutate runs a read-modify-write of the whole sequence in one transaction.
// The revision is bumped only when change reports a modification.
func (r *BoltRepository) mutate(ctx context.Context, change func([]models.Wallpaper) ([]models.Wallpaper, bool, error)) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var revision uint64
	err := r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}

		snap, found, err := read(bucket)
		if err != nil {
			return err
		}
		if !found {
			snap = models.Snapshot{Wallpapers: InitialData(r.now())}
		}

		updated, changed, err := change(snap.Wallpapers)
		if err != nil {
			return err
		}

		revision = snap.Revision
		if !changed && found {
			return nil
		}
		if changed {
			revision++
		}

		return write(bucket, models.Snapshot{Revision: revision, Wallpapers: updated})
	})

	return revision, err
}

func (r *BoltRepository) Seen(key string) (bool, error) {
	var seen bool
	err := r.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}

		seen = bucket.Get([]byte(key)) != nil
		return nil
	})

	return seen, err
}

func (r *BoltRepository) MarkSeen(key string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}

		return bucket.Put([]byte(key), []byte("true"))
	})
}

func read(bucket *bolt.Bucket) (models.Snapshot, bool, error) {
	bytes := bucket.Get([]byte(WallpapersKey))
	if bytes == nil {
		return models.Snapshot{}, false, nil
	}

	var ws []models.Wallpaper
	if err := json.Unmarshal(bytes, &ws); err != nil {
		return models.Snapshot{}, false, fmt.Errorf("corrupted %s: %w", WallpapersKey, err)
	}

	var revision uint64
	if rev := bucket.Get([]byte(RevisionKey)); len(rev) == 8 {
		revision = binary.BigEndian.Uint64(rev)
	}

	return models.Snapshot{Revision: revision, Wallpapers: ws}, true, nil
}

func write(bucket *bolt.Bucket, snap models.Snapshot) error {
	ws := snap.Wallpapers
	if ws == nil {
		ws = []models.Wallpaper{}
	}

	marshalled, err := json.Marshal(&ws)
	if err != nil {
		return err
	}

	if err := bucket.Put([]byte(WallpapersKey), marshalled); err != nil {
		return err
	}

	rev := make([]byte, 8)
	binary.BigEndian.PutUint64(rev, snap.Revision)

	return bucket.Put([]byte(RevisionKey), rev)
}
