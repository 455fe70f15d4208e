package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/axilent/sharrock"
	"github.com/axilent/sharrock/internal/config"
	"github.com/axilent/sharrock/internal/example"
	"github.com/axilent/sharrock/modelstore"
)

// Permission required by the secured example services.
const whoamiPermission = "whoami"

// openStore returns the model resource store named by the config and a
// function releasing it.
func openStore(ctx context.Context, cfg config.StoreConfig) (sharrock.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := modelstore.OpenSQLite(ctx, cfg.Path, "users")
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return modelstore.NewMemory(), func() error { return nil }, nil
	}
}

// sources returns the example applications plus the secured module when
// credentials are configured.
func sources(cfg config.AuthConfig, users sharrock.Store) []sharrock.Source {
	srcs := example.Sources(users)

	var basic, token sharrock.SecurityCheck
	if len(cfg.Users) > 0 {
		basic = sharrock.NewBasicAuthCheck(cfg.Users, whoamiPermission)
	}
	if cfg.JWTSecret != "" {
		token = sharrock.NewJWTCheck([]byte(cfg.JWTSecret), whoamiPermission)
	}
	if basic != nil || token != nil {
		srcs = append(srcs, example.SecureModule(basic, token))
	}
	return srcs
}

// newRouter builds the registry and the router with its middleware chain.
func newRouter(cfg *config.Config, users sharrock.Store, logger *slog.Logger) (*sharrock.Router, error) {
	registry, err := sharrock.Build(sources(cfg.Auth, users)...)
	if err != nil {
		return nil, err
	}

	formats := make([]sharrock.Serializer, 0, len(cfg.Server.Formats))
	for _, f := range cfg.Server.Formats {
		s, err := sharrock.BuiltinSerializer(f)
		if err != nil {
			return nil, fmt.Errorf("server.formats: %w", err)
		}
		formats = append(formats, s)
	}

	opts := []sharrock.RouterOption{
		sharrock.WithTitle(cfg.Server.Title),
		sharrock.WithLogger(logger),
		sharrock.WithFormats(formats...),
	}

	var metrics *sharrock.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = sharrock.NewMetrics(reg)
		opts = append(opts, sharrock.WithMetrics(metrics))
	}

	r := sharrock.New(registry, opts...)
	r.ServeDocs("/docs")
	if metrics != nil {
		r.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	r.Use(
		sharrock.RequestID(),
		sharrock.Logger(logger),
		sharrock.Recovery(logger),
		sharrock.Secure(),
	)
	if cfg.Server.CORS {
		r.Use(sharrock.CORS())
	}
	if cfg.RateLimit.Enabled {
		r.Use(sharrock.RateLimit(sharrock.RateLimitConfig{
			Rate:    cfg.RateLimit.Rate,
			Burst:   cfg.RateLimit.Burst,
			KeyFunc: sharrock.ServiceKey,
		}))
	}
	r.Use(sharrock.BodyLimit(cfg.Server.BodyLimit))
	return r, nil
}
