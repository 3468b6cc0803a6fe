package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/fedragon/walltok/internal"
	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/app"
	"github.com/fedragon/walltok/internal/config"
	"github.com/fedragon/walltok/internal/core"
	"github.com/fedragon/walltok/internal/feed"
	"github.com/fedragon/walltok/internal/metadata"
	"github.com/fedragon/walltok/internal/models"
	"github.com/fedragon/walltok/internal/storage/s3"
	"github.com/fedragon/walltok/pkg/client"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	var logger *zap.Logger

	cfg := func(c *cli.Context) config.Config {
		return config.Config{
			DBPath:       c.String("db"),
			Addr:         c.String("addr"),
			RedisAddr:    c.String("redis-addr"),
			GeminiAPIKey: c.String("gemini-api-key"),
			Model:        c.String("model"),
			Latency:      c.Duration("latency"),
			PollInterval: c.Duration("poll-interval"),
			Sink:         c.String("sink"),
			MediaDir:     c.String("media-dir"),
			MediaBaseURL: c.String("media-base-url"),
			S3: s3.Config{
				Endpoint:  c.String("s3-endpoint"),
				AccessKey: c.String("s3-access-key"),
				SecretKey: c.String("s3-secret-key"),
				UseSSL:    c.Bool("s3-ssl"),
				Bucket:    c.String("s3-bucket"),
				PublicURL: c.String("s3-public-url"),
			},
			Verbose: c.Bool("verbose"),
		}
	}

	// withRunner opens the local store for the duration of one command.
	withRunner := func(fn func(ctx context.Context, r *internal.Runner, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			r, err := internal.NewRunner(c.Context, logger, cfg(c))
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Info(err.Error())
				}
			}()

			return fn(c.Context, r, c)
		}
	}

	cliApp := &cli.App{
		Name:  "walltok",
		Usage: "wallpaper and short-video feed with cross-client sync",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Value: "~/.walltok.db", Usage: "path to the store", EnvVars: []string{"WALLTOK_DB"}},
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", EnvVars: []string{"WALLTOK_ADDR"}},
			&cli.StringFlag{Name: "redis-addr", Usage: "redis address for the cross-process sync channel", EnvVars: []string{"WALLTOK_REDIS_ADDR"}},
			&cli.StringFlag{Name: "gemini-api-key", Usage: "GenAI API key; fallback metadata is used without it", EnvVars: []string{"GEMINI_API_KEY", "API_KEY"}},
			&cli.StringFlag{Name: "model", Value: metadata.DefaultModel, Usage: "GenAI model", EnvVars: []string{"WALLTOK_MODEL"}},
			&cli.DurationFlag{Name: "latency", Value: core.DefaultLatency, Usage: "simulated cloud latency", EnvVars: []string{"WALLTOK_LATENCY"}},
			&cli.DurationFlag{Name: "poll-interval", Value: feed.DefaultPollInterval, Usage: "feed polling interval", EnvVars: []string{"WALLTOK_POLL_INTERVAL"}},
			&cli.StringFlag{Name: "sink", Value: config.DataSink, Usage: "where uploaded media goes: data, dir or s3", EnvVars: []string{"WALLTOK_SINK"}},
			&cli.StringFlag{Name: "media-dir", Value: "~/.walltok/media", Usage: "directory of the dir sink", EnvVars: []string{"WALLTOK_MEDIA_DIR"}},
			&cli.StringFlag{Name: "media-base-url", Value: "/media", Usage: "public prefix of dir sink locators", EnvVars: []string{"WALLTOK_MEDIA_BASE_URL"}},
			&cli.StringFlag{Name: "s3-endpoint", EnvVars: []string{"S3_ENDPOINT"}},
			&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"S3_ACCESS_KEY"}},
			&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"S3_SECRET_KEY"}},
			&cli.BoolFlag{Name: "s3-ssl", EnvVars: []string{"S3_USE_SSL"}},
			&cli.StringFlag{Name: "s3-bucket", Value: "media", EnvVars: []string{"S3_BUCKET"}},
			&cli.StringFlag{Name: "s3-public-url", EnvVars: []string{"S3_PUBLIC_URL"}},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "development logging"},
		},
		Before: func(c *cli.Context) error {
			var err error
			if c.Bool("verbose") {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "share the store over HTTP",
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					return r.Serve(ctx)
				}),
			},
			{
				Name:  "list",
				Usage: "list wallpapers, newest first",
				Flags: []cli.Flag{&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Value: feed.All}},
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					ws, err := r.List(ctx, c.String("category"))
					if err != nil {
						return err
					}
					printWallpapers(ws)
					return nil
				}),
			},
			{
				Name:  "categories",
				Usage: "list the feed categories",
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					ws, err := r.List(ctx, feed.All)
					if err != nil {
						return err
					}
					for _, category := range feed.Categories(ws) {
						fmt.Println(category)
					}
					return nil
				}),
			},
			{
				Name:  "publish",
				Usage: "publish a wallpaper from a URL or a local file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url"},
					&cli.StringFlag{Name: "file"},
					&cli.StringFlag{Name: "type", Usage: "image or video; inferred when empty"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
				},
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					d := admin.Draft{URL: c.String("url"), File: c.String("file"), Description: c.String("description")}
					if t := c.String("type"); t != "" {
						kind, ok := models.ParseMediaType(t)
						if !ok {
							return fmt.Errorf("unknown media type %q", t)
						}
						d.Kind = kind
					}

					w, err := r.Admin().Publish(ctx, d)
					if err != nil {
						return err
					}
					printWallpapers([]models.Wallpaper{w})
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "delete a wallpaper",
				ArgsUsage: "<id>",
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one id is required", 2)
					}
					return r.Admin().Delete(ctx, c.Args().First())
				}),
			},
			{
				Name:      "edit",
				Usage:     "change fields of a wallpaper",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "url"},
					&cli.StringFlag{Name: "type"},
					&cli.IntFlag{Name: "likes"},
					&cli.StringSliceFlag{Name: "tag"},
				},
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one id is required", 2)
					}
					patch, err := patchFrom(c)
					if err != nil {
						return err
					}
					return r.Admin().Update(ctx, c.Args().First(), patch)
				}),
			},
			{
				Name:      "import",
				Usage:     "publish every media file under a directory",
				ArgsUsage: "<dir>",
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one directory is required", 2)
					}
					_, err := r.Import(ctx, c.Args().First())
					return err
				}),
			},
			{
				Name:  "sweep",
				Usage: "delete resubmitted wallpapers sharing a locator",
				Action: withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
					swept, err := r.Sweep(ctx)
					if err != nil {
						return err
					}
					logger.Info("Sweep completed", zap.Int("swept", swept))
					return nil
				}),
			},
			{
				Name:  "watch",
				Usage: "follow a feed session and print every change",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "remote", Usage: "base URL of a walltok server; the local store is used otherwise"},
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}, Value: feed.All},
					&cli.StringFlag{Name: "view", Usage: "URL fragment selecting the view, e.g. #/admin"},
				},
				Action: func(c *cli.Context) error {
					if remote := c.String("remote"); remote != "" {
						tab := client.New(remote, nil, logger)
						session := feed.NewController(tab, tab, feed.Options{
							PollInterval: c.Duration("poll-interval"),
							Logger:       logger,
						})
						return watch(c, app.New(c.String("view"), session, nil, logger))
					}

					return withRunner(func(ctx context.Context, r *internal.Runner, c *cli.Context) error {
						return watch(c, app.New(c.String("view"), r.Feed(), r.Admin(), logger))
					})(c)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		if logger != nil {
			logger.Fatal(err.Error())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func watch(c *cli.Context, a *app.App) error {
	if a.View() == app.Admin {
		if err := a.Run(c.Context); err != nil {
			return err
		}
		printWallpapers(a.Admin().Library())
		return nil
	}

	session := a.Feed()
	session.SelectCategory(c.String("category"))

	var (
		mu   sync.Mutex
		last = -1
	)
	session.OnChange(func(v feed.View) {
		mu.Lock()
		defer mu.Unlock()

		if int(v.Revision) == last || session.Refreshes() == 0 {
			return
		}
		last = int(v.Revision)
		fmt.Printf("-- revision %d, %d wallpapers in %s\n", v.Revision, len(v.Wallpapers), v.Category)
		printWallpapers(v.Wallpapers)
	})

	if err := a.Run(c.Context); err != nil && c.Context.Err() == nil {
		return err
	}
	return nil
}

func patchFrom(c *cli.Context) (models.Patch, error) {
	var patch models.Patch

	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}

	patch.Title = str("title")
	patch.Description = str("description")
	patch.URL = str("url")

	if t := str("type"); t != nil {
		kind, ok := models.ParseMediaType(*t)
		if !ok {
			return patch, fmt.Errorf("unknown media type %q", *t)
		}
		patch.Type = &kind
	}
	if c.IsSet("likes") {
		likes := c.Int("likes")
		patch.Likes = &likes
	}
	if c.IsSet("tag") {
		patch.Tags = c.StringSlice("tag")
	}

	return patch, patch.Validate()
}

func printWallpapers(ws []models.Wallpaper) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, x := range ws {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", x.ID, x.Type, x.Title, x.Likes, strings.Join(x.Tags, ","))
	}
	_ = w.Flush()
}
