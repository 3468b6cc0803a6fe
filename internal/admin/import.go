package admin

import (
	"context"
	"strings"

	"github.com/fedragon/walltok/internal/core"
	"github.com/fedragon/walltok/internal/fs"

	"go.uber.org/zap"
)

// ConcurrentImporter publishes every media file under a directory, using the
// file name as the description handed to the metadata generator.
type ConcurrentImporter struct {
	Admin      *Controller
	FileTypes  []string
	NumWorkers int
	Logger     *zap.Logger
}

func (ci *ConcurrentImporter) Import(parentCtx context.Context, source string) (int64, error) {
	ci.Logger.Info("Importing media", zap.String("source", source))

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	media := fs.Walk(source, ci.FileTypes)

	numWorkers := ci.NumWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}

	workers := make([]<-chan int64, numWorkers)
	for i := 0; i < numWorkers; i++ {
		workers[i] = ci.publish(ctx, i, media)
	}

	var imported int64
	for i := range core.Merge(ctx, workers...) {
		if imported > 0 && imported%100 == 0 {
			ci.Logger.Info("Imported a(nother) batch of files", zap.Int64("count", imported))
		}
		imported += i
	}
	ci.Logger.Info("Total imported files", zap.Int64("total", imported))

	return imported, parentCtx.Err()
}

func (ci *ConcurrentImporter) publish(ctx context.Context, id int, media <-chan fs.Media) <-chan int64 {
	published := make(chan int64)
	log := ci.Logger.With(zap.Int("worker_id", id))

	go func() {
		defer close(published)

		for m := range media {
			if m.Err != nil {
				log.Error("Cannot walk source", zap.Error(m.Err))
				continue
			}

			loaded, err := fs.Read(m.Path)
			if err != nil {
				log.Error("Cannot read file", zap.String("path", m.Path), zap.Error(err))
				continue
			}

			w, err := ci.Admin.PublishMedia(ctx, loaded, Describe(m.Name))
			if err != nil {
				log.Error("Cannot publish file", zap.String("path", m.Path), zap.Error(err))
				continue
			}
			log.Info("Published file", zap.String("path", m.Path), zap.String("id", w.ID))

			select {
			case <-ctx.Done():
				return
			case published <- 1:
			}
		}
	}()

	return published
}

// Describe turns a file name such as "misty_forest-01.jpg" into "misty forest 01".
func Describe(name string) string {
	base := name
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}

	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})

	return strings.Join(fields, " ")
}
