// Package server exposes the renderer over HTTP.
//
// Routes:
//
//	GET  /healthz           liveness probe
//	GET  /version           build information
//	GET  /v1/templates      templates found in the template directory
//	POST /v1/render         stamp a frame, returns PNG or JPEG bytes
//	POST /v1/inspect        resolved geometry as JSON
//	POST /v1/validate       structural issues of a template
//
// Every POST takes a [Request] as JSON. Errors are returned as
// {"code": ..., "error": ...} with a status derived from the error code.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/framestamp/pkg/fonts"
	"github.com/matzehuels/framestamp/pkg/raster"
	"github.com/matzehuels/framestamp/pkg/scene"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8080"
	// DefaultMaxBody bounds request bodies.
	DefaultMaxBody = 64 << 20
	// DefaultTimeout bounds one request.
	DefaultTimeout = 60 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Options configure a [Server].
type Options struct {
	Addr string
	// TemplateDir holds the template files requests may name. Empty
	// disables by-name templates.
	TemplateDir string
	MaxBody     int64
	Timeout     time.Duration
	Logger      *log.Logger
}

// Server is the HTTP render service.
type Server struct {
	scene  *scene.Scene
	opts   Options
	logger *log.Logger
	router chi.Router
}

// New creates a server rendering with sc.
func New(sc *scene.Scene, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	s := &Server{scene: sc, opts: opts, logger: opts.Logger}
	s.router = s.routes()
	return s
}

// NewScene creates a scene for rendering request templates. Image
// references must be relative paths inside templateDir and font names
// must resolve inside fontDirs; anything else fails with INVALID_PATH.
func NewScene(templateDir string, fontDirs []string, debug bool, logger *log.Logger) *scene.Scene {
	return scene.New(scene.Options{
		Raster: raster.New(fonts.NewConfined(fontDirs, 0)),
		Images: raster.NewConfinedImageLoader(templateDir, 0),
		Debug:  debug,
		Logger: logger,
	})
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.Timeout))

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Get("/templates", s.handleTemplates)
		r.Post("/render", s.handleRender)
		r.Post("/inspect", s.handleInspect)
		r.Post("/validate", s.handleValidate)
	})
	return r
}

// Handler returns the service's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.opts.Addr
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
