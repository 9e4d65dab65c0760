// Package server exposes word lookups over HTTP and serves the client bundle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/dictionary"
	"github.com/gitmatrixmax/google-dictionary/internal/images"
	"github.com/gitmatrixmax/google-dictionary/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type ImageResolver interface {
	GetWordImages(ctx context.Context, word string) images.WordImages
}

type Dictionary interface {
	Lookup(ctx context.Context, word string) (*dictionary.Result, error)
}

// Authenticator checks basic-auth credentials for /metrics.
type Authenticator interface {
	TestUser(user, pass string) bool
}

type Options struct {
	// StaticDir holds the built client; index.html answers unknown paths.
	StaticDir  string
	PrettyJSON bool
	// Debug mounts net/http/pprof under /debug/pprof/.
	Debug bool
	// Auth guards /metrics when set.
	Auth       Authenticator
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

type Server struct {
	images  ImageResolver
	dict    Dictionary
	opts    Options
	log     *zap.Logger
	metrics *httpMetrics
	handler http.Handler
}

func New(img ImageResolver, dict Dictionary, opts Options) *Server {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Gatherer == nil {
		if g, ok := opts.Registerer.(prometheus.Gatherer); ok {
			opts.Gatherer = g
		} else {
			opts.Gatherer = prometheus.DefaultGatherer
		}
	}
	s := &Server{
		images:  img,
		dict:    dict,
		opts:    opts,
		log:     logger.Named(opts.Logger, "server"),
		metrics: newHTTPMetrics(opts.Registerer),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/images", s.handleImages)
	mux.HandleFunc("POST /api/dictionary", s.handleDictionary)
	mux.HandleFunc("/api/", s.handleAPINotFound)

	metrics := promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})
	if s.opts.Auth != nil {
		metrics = basicAuth(s.opts.Auth, "metrics", metrics)
	}
	mux.Handle("GET /metrics", metrics)

	if s.opts.Debug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.Handle("/", newSPAHandler(s.opts.StaticDir))

	return s.withRequestID(s.withAccessLog(withCORS(mux)))
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is done, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting Server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
