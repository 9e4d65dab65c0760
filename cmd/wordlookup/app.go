package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/config"
	"github.com/gitmatrixmax/google-dictionary/internal/dictionary"
	"github.com/gitmatrixmax/google-dictionary/internal/images"
	"github.com/gitmatrixmax/google-dictionary/internal/server"
	"github.com/gitmatrixmax/google-dictionary/internal/store"
)

// app holds the components built from one configuration.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
	cascade  *images.Cascade
	dict     *dictionary.Client
	sentry   bool
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	st, err := store.New(log)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.User != "" {
		if err := st.AddUser(cfg.Metrics.User, cfg.Metrics.PasswordHash, 1); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("metrics user: %w", err)
		}
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			AttachStacktrace: true,
			Debug:            cfg.Debug.Enabled,
		})
		if err != nil {
			log.Warn("Sentry initialization failed, fault reporting disabled", zap.Error(err))
		} else {
			a.sentry = true
		}
	}

	a.cascade = images.NewCascade(a.imageCache(), a.providers(), a.cascadeOptions()...)
	a.dict = dictionary.NewClient(
		dictionary.WithRapidAPIKey(cfg.WordsAPI.Key),
		dictionary.WithCacheTTL(cfg.Dictionary.CacheTTL),
		dictionary.WithLogger(log),
	)
	return a, nil
}

func (a *app) imageCache() images.Cache {
	if a.cfg.Images.CacheBackend == config.BackendSQLite {
		return a.store.ImageCache()
	}
	return images.NewMemoryCache(a.cfg.Images.CacheSize, a.cfg.Images.CacheTTL)
}

// providers returns the image sources in priority order.
func (a *app) providers() []images.Provider {
	opts := []images.ProviderOption{
		images.WithRateLimit(a.cfg.Images.RateLimit),
		images.WithProviderLogger(a.log),
	}
	return []images.Provider{
		images.NewGoogleProvider(a.cfg.Google.Key, a.cfg.Google.CX, opts...),
		images.NewUnsplashProvider(a.cfg.Unsplash.AccessKey, opts...),
		images.NewPixabayProvider(a.cfg.Pixabay.Key, opts...),
	}
}

func (a *app) cascadeOptions() []images.Option {
	opts := []images.Option{
		images.WithTTL(a.cfg.Images.CacheTTL),
		images.WithDedupe(a.cfg.Images.Dedupe),
		images.WithMetrics(images.NewMetrics(a.registry)),
		images.WithLogger(a.log),
	}
	if a.sentry {
		opts = append(opts, images.WithFaultHook(reportFault))
	}
	return opts
}

func reportFault(term string, fault error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "images")
		scope.SetTag("term", term)
		sentry.CaptureException(fault)
	})
}

func (a *app) server() *server.Server {
	opts := server.Options{
		StaticDir:  filepath.Join(a.cfg.StaticPath, "client", "dist"),
		PrettyJSON: a.cfg.Debug.PrettyJson,
		Debug:      a.cfg.Debug.Enabled,
		Registerer: a.registry,
		Gatherer:   a.registry,
		Logger:     a.log,
	}
	if a.cfg.Metrics.User != "" {
		opts.Auth = server.ConfiguredUser(a.store, a.cfg.Metrics.User)
	}
	return server.New(a.cascade, a.dict, opts)
}

func (a *app) Close() {
	if a.sentry {
		sentry.Flush(2 * time.Second)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close store", zap.Error(err))
	}
}
