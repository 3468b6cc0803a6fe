package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/broadcast"
	"github.com/fedragon/walltok/internal/feed"
	"github.com/fedragon/walltok/internal/fs"
	"github.com/fedragon/walltok/internal/metrics"
	"github.com/fedragon/walltok/internal/models"

	"go.uber.org/zap"
)

const maxUpload = 32 << 20

// Notifier is the relay side of the sync channel.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan broadcast.Message, error)
}

type Options struct {
	// Cloud serves reads and mutations
	Cloud admin.Cloud
	// Admin runs the publish pipeline
	Admin *admin.Controller
	// Notifier feeds the event stream; nil disables it
	Notifier Notifier
	// Store is the identity of the served store. Notices tagged with another
	// store are not relayed.
	Store string
	// MediaDir is served under /media/ when set
	MediaDir string
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Server struct {
	opts   Options
	logger *zap.Logger
	mux    *http.ServeMux
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}

	s.mux.Handle("/metrics", opts.Metrics.Handler())
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.route("GET /api/wallpapers", "list", s.list)
	s.route("POST /api/wallpapers", "publish", s.publish)
	s.route("PATCH /api/wallpapers/{id}", "update", s.update)
	s.route("DELETE /api/wallpapers/{id}", "delete", s.delete)
	s.route("GET /api/categories", "categories", s.categories)
	s.mux.HandleFunc("GET /api/sync", s.sync)

	if opts.MediaDir != "" {
		s.mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       90 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) route(pattern, name string, fn func(http.ResponseWriter, *http.Request) error) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		stop := s.opts.Metrics.Record("http." + name)
		defer func() { _ = stop() }()

		if err := fn(w, r); err != nil {
			status, reason := statusOf(err)
			if status >= http.StatusInternalServerError {
				s.logger.Error("Request failed", zap.String("route", name), zap.Error(err))
			}
			WriteError(w, status, err, reason)
		}
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) error {
	snap, err := s.opts.Cloud.FetchAll(r.Context())
	if err != nil {
		return err
	}

	if category := r.URL.Query().Get("category"); category != "" {
		snap.Wallpapers = feed.Filter(snap.Wallpapers, category)
	}
	if snap.Wallpapers == nil {
		snap.Wallpapers = []models.Wallpaper{}
	}

	WriteJSON(w, snap, http.StatusOK)
	return nil
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) error {
	snap, err := s.opts.Cloud.FetchAll(r.Context())
	if err != nil {
		return err
	}

	WriteJSON(w, map[string]any{"categories": feed.Categories(snap.Wallpapers)}, http.StatusOK)
	return nil
}

// publish accepts either a JSON draft or a multipart upload with a "file"
// part and an optional "description" field.
func (s *Server) publish(w http.ResponseWriter, r *http.Request) error {
	if s.opts.Admin == nil {
		return httpErr{"publishing is disabled", "read_only", http.StatusForbidden}
	}

	var (
		created models.Wallpaper
		err     error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		created, err = s.upload(r)
	} else {
		var d admin.Draft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			return errBadReq("bad_json", "bad json")
		}
		if d.File != "" {
			return errBadReq("no_local_files", "local paths cannot be published remotely")
		}
		created, err = s.opts.Admin.Publish(r.Context(), d)
	}
	if err != nil {
		return err
	}

	WriteJSON(w, created, http.StatusCreated)
	return nil
}

func (s *Server) upload(r *http.Request) (models.Wallpaper, error) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		return models.Wallpaper{}, errBadReq("bad_form", err.Error())
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return models.Wallpaper{}, admin.ErrNoMedia
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return models.Wallpaper{}, fmt.Errorf("cannot read upload: %w", err)
	}

	media := fs.Media{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if media.ContentType == "" || media.ContentType == "application/octet-stream" {
		media.ContentType = fs.ContentType(header.Filename, data)
	}

	return s.opts.Admin.PublishMedia(r.Context(), media, r.FormValue("description"))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) error {
	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return errBadReq("bad_json", "bad json")
	}

	if err := s.opts.Cloud.Update(r.Context(), r.PathValue("id"), patch); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) error {
	if err := s.opts.Cloud.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// sync relays sync channel messages as server-sent events until the client
// goes away.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.opts.Notifier == nil {
		WriteError(w, http.StatusNotImplemented, errors.New("event stream unavailable"), "no_stream")
		return
	}

	messages, err := s.opts.Notifier.Subscribe(r.Context())
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err, "no_channel")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	_ = s.opts.Metrics.Increment("http.sync.connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			if !s.relays(m) {
				_ = s.opts.Metrics.Increment("http.sync.foreign")
				continue
			}

			data, err := broadcast.Encode(m)
			if err != nil {
				s.logger.Warn("Cannot encode sync message", zap.Error(err))
				continue
			}

			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// relays reports whether m concerns the served store. Untagged notices are
// relayed as they are.
func (s *Server) relays(m broadcast.Message) bool {
	return s.opts.Store == "" || m.Store == "" || m.Store == s.opts.Store
}
