// Package server provides the public entry point for initializing the
// prompt plane server.
//
// This package exists in pkg/ (not internal/) so that other binaries can
// compose the server with their own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	defer srv.Close()
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/promptplane/internal/api"
	"github.com/agentoven/promptplane/internal/api/handlers"
	"github.com/agentoven/promptplane/internal/assembler"
	"github.com/agentoven/promptplane/internal/cache"
	"github.com/agentoven/promptplane/internal/catalog"
	"github.com/agentoven/promptplane/internal/coachapi"
	"github.com/agentoven/promptplane/internal/config"
	"github.com/agentoven/promptplane/internal/llmconfig"
	"github.com/agentoven/promptplane/internal/objectstore"
	"github.com/agentoven/promptplane/internal/params"
	"github.com/agentoven/promptplane/internal/registry"
	"github.com/agentoven/promptplane/internal/resolver"
	"github.com/agentoven/promptplane/internal/retrieval"
	"github.com/agentoven/promptplane/internal/store"
	"github.com/agentoven/promptplane/internal/telemetry"
	"github.com/agentoven/promptplane/internal/templates"
	"github.com/agentoven/promptplane/pkg/contracts"
	"github.com/agentoven/promptplane/pkg/models"
)

// Server holds the initialized prompt plane.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Stores and cache, exposed so embedding binaries can reuse them.
	Configs   contracts.ConfigStore
	Templates contracts.TemplateMetaStore
	Cache     contracts.Cache
	Resolver  contracts.ConfigResolver

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error

	closers []func() error
}

// New loads configuration and initializes every component.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the prompt plane with an explicit configuration.
// Registries are built once here and never change afterwards.
func NewWithConfig(ctx context.Context, cfg *config.Config) (_ *Server, err error) {
	srv := &Server{Config: cfg, Port: cfg.Server.Port}
	defer func() {
		if err != nil {
			srv.Close()
		}
	}()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Server.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	srv.ShutdownFunc = shutdown

	// ── Registries ──
	paramReg, err := registry.BuildParameters(registry.DefaultParameters())
	if err != nil {
		return nil, fmt.Errorf("parameter registry: %w", err)
	}
	interactions, err := registry.BuildInteractions(registry.DefaultInteractions(), paramReg)
	if err != nil {
		return nil, fmt.Errorf("interaction registry: %w", err)
	}
	methods, err := retrieval.Defaults().Build(paramReg)
	if err != nil {
		return nil, fmt.Errorf("retrieval registry: %w", err)
	}
	var overrides []models.ModelCapability
	if cfg.Models.OverridesPath != "" {
		if overrides, err = catalog.LoadOverrides(cfg.Models.OverridesPath); err != nil {
			return nil, err
		}
	}
	modelReg, err := catalog.New(overrides)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w", err)
	}
	log.Info().
		Int("parameters", paramReg.Len()).
		Int("interactions", interactions.Len()).
		Int("retrieval_methods", len(methods.List(nil))).
		Int("models", modelReg.Count()).
		Msg("✅ Registries built")

	// ── Storage ──
	if err := srv.openStores(ctx, cfg.Store); err != nil {
		return nil, err
	}
	if err := srv.openCache(ctx, cfg.Cache); err != nil {
		return nil, err
	}
	objects, err := openObjects(cfg.Objects)
	if err != nil {
		return nil, err
	}
	bodies, err := templates.NewStore(objects, cfg.Templates.BodyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("template store: %w", err)
	}

	// ── Engines & services ──
	res := resolver.NewResolver(srv.Configs, srv.Cache, interactions, modelReg, resolver.WithTTL(cfg.Cache.TTL))
	srv.Resolver = res
	proc := params.NewProcessor(paramReg, methods, params.Config{
		Timeout:     cfg.Retrieval.Timeout,
		MaxParallel: cfg.Retrieval.MaxParallel,
	})
	client := coachapi.New(coachapi.Config{
		BaseURL:    cfg.CoachAPI.BaseURL,
		APIKey:     cfg.CoachAPI.APIKey,
		Timeout:    cfg.CoachAPI.Timeout,
		RetryCount: cfg.CoachAPI.RetryCount,
	})

	h := &handlers.Handlers{
		Assembler:    assembler.New(res, bodies, proc, interactions, client),
		Resolver:     res,
		Configs:      llmconfig.NewService(srv.Configs, interactions, modelReg, bodies, res),
		Templates:    bodies,
		Metadata:     templates.NewMetadataService(srv.Templates, bodies, interactions),
		Parameters:   paramReg,
		Methods:      methods,
		Interactions: interactions,
		Models:       modelReg,
	}
	srv.Handler = api.NewRouter(cfg.Server.Version, cfg.Server.AdminKeys, h)
	if len(cfg.Server.AdminKeys) == 0 {
		log.Warn().Msg("⚠️ No admin keys configured, admin API is open")
	}
	return srv, nil
}

func (s *Server) openStores(ctx context.Context, cfg config.StoreConfig) error {
	var mem *store.MemoryStore
	memory := func() *store.MemoryStore {
		if mem == nil {
			mem = store.NewMemoryStore(cfg.SnapshotDir)
			s.closers = append(s.closers, mem.Close)
		}
		return mem
	}

	switch cfg.Configs {
	case "postgres":
		if err := store.MigratePostgres(ctx, cfg.PostgresURL); err != nil {
			return err
		}
		pool, err := store.OpenPostgres(ctx, cfg.PostgresURL, cfg.MaxConnections)
		if err != nil {
			return err
		}
		pg := store.NewPostgresConfigStore(pool)
		s.closers = append(s.closers, pg.Close)
		s.Configs = pg
		log.Info().Msg("✅ PostgreSQL configuration store initialized")
	default:
		s.Configs = memory()
		log.Info().Msg("✅ In-memory configuration store initialized")
	}

	switch cfg.Templates {
	case "sqlite":
		lite, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, lite.Close)
		s.Templates = lite
		log.Info().Str("path", cfg.SQLitePath).Msg("✅ SQLite template metadata store initialized")
	default:
		s.Templates = memory()
		log.Info().Msg("✅ In-memory template metadata store initialized")
	}
	return nil
}

func (s *Server) openCache(ctx context.Context, cfg config.CacheConfig) error {
	var c cache.Cache
	switch cfg.Driver {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		c = r
	default:
		m, err := cache.NewMemory(cfg.MaxEntries)
		if err != nil {
			return err
		}
		c = m
	}
	s.Cache = c
	s.closers = append(s.closers, c.Close)
	log.Info().Str("driver", cfg.Driver).Dur("ttl", cfg.TTL).Msg("✅ Resolution cache initialized")
	return nil
}

func openObjects(cfg config.ObjectsConfig) (objectstore.Store, error) {
	if cfg.Driver == "mem" {
		log.Warn().Msg("Template bodies kept in memory, they will not survive a restart")
		return objectstore.NewMemFS(), nil
	}
	fs, err := objectstore.NewOSFS(cfg.Root)
	if err != nil {
		return nil, err
	}
	log.Info().Str("root", cfg.Root).Msg("✅ Template object store initialized")
	return fs, nil
}

// Close releases stores and cache connections in reverse open order.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
