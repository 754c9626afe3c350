package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/modforge/api/rest"
	"github.com/kasuganosora/modforge/api/sse"
	"github.com/kasuganosora/modforge/audit"
	"github.com/kasuganosora/modforge/cache"
	"github.com/kasuganosora/modforge/config"
	dbadapter "github.com/kasuganosora/modforge/db"
	"github.com/kasuganosora/modforge/game/action"
	"github.com/kasuganosora/modforge/game/armory"
	"github.com/kasuganosora/modforge/game/battle"
	"github.com/kasuganosora/modforge/game/loot"
	"github.com/kasuganosora/modforge/game/player"
	"github.com/kasuganosora/modforge/game/script"
	mw "github.com/kasuganosora/modforge/middleware"
	"github.com/kasuganosora/modforge/model"
	"github.com/kasuganosora/modforge/resource"
	"github.com/kasuganosora/modforge/scheduler"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	backend, err := cache.Open(ctx, cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		RedisPrefix:     cfg.Cache.RedisPrefix,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	defer backend.Close()
	c, pubsub := backend.Cache, backend.PubSub
	logger.Info("Cache initialized", zap.Bool("redis", backend.Redis))

	// ---- Mod catalog ----
	sandbox := script.NewSandbox(cfg.Script.VMPoolSize, cfg.Script.Timeout, logger)
	bus := action.NewBusHost(pubsub, cfg.Weapon.EffectChannel, logger)
	actions := action.NewRegistry(bus, sandbox, logger)
	catalog := resource.NewLoader(cfg.Catalog.Path, actions, logger)
	if err := catalog.Load(); err != nil {
		logger.Warn("catalog load failed; weapons cannot be created until it loads", zap.Error(err))
	}

	// ---- Game systems ----
	boundary, err := battle.ParseBoundary(cfg.Loot.Boundary)
	if err != nil {
		log.Fatalf("loot: %v", err)
	}
	selector := battle.NewSelector(boundary)
	resolver := battle.NewResolver(cfg.Combat.CritMultiplier, cfg.Combat.SelfDamageFactor)

	arm := armory.New(armory.Deps{
		Mods:          catalog,
		Store:         armory.NewStore(db),
		Cache:         c,
		Resolver:      resolver,
		SnapshotTTL:   cfg.Cache.SnapshotTTL,
		ProjectileTTL: cfg.Weapon.ProjectileTTL,
		MaxBullets:    cfg.Weapon.MaxBullets,
		Logger:        logger,
	})
	if n, err := arm.Restore(ctx); err != nil {
		logger.Warn("loadout restore failed", zap.Error(err))
	} else {
		logger.Info("loadouts restored", zap.Int("weapons", n))
	}
	catalog.OnReload(func(cat *resource.Catalog) {
		arm.Rebind(ctx, cat)
		logger.Info("catalog reloaded",
			zap.Int("mods", len(cat.Mods())),
			zap.Strings("warnings", cat.Warnings))
	})

	tracker := player.NewTracker(cfg.Progression.TokenThreshold, c, logger)
	lootSvc := loot.NewService(loot.Config{
		KillChannel: cfg.Loot.KillChannel,
		DropChannel: cfg.Loot.DropChannel,
		DedupeTTL:   cfg.Loot.DedupeTTL,
		RecentSize:  cfg.Loot.RecentSize,
	}, catalog, selector, c, pubsub, tracker, auditSvc, logger)

	// ---- Scheduler ----
	sched := scheduler.New(ctx, logger)
	defer sched.Stop()
	sched.AddTicker("world_tick", time.Duration(cfg.Weapon.TickMs)*time.Millisecond, func(tctx context.Context, now time.Time) {
		arm.Tick(tctx, now)
	})
	sched.AddTicker("autosave", cfg.Weapon.AutosaveInterval, func(tctx context.Context, _ time.Time) {
		if err := arm.SaveAll(tctx); err != nil {
			logger.Warn("autosave incomplete", zap.Error(err))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))
	apirest.RegisterRoutes(r, apirest.Handlers{
		Weapon:  apirest.NewWeaponHandler(arm, catalog, bus, auditSvc, logger),
		Loot:    apirest.NewLootHandler(lootSvc, auditSvc, logger),
		Player:  apirest.NewPlayerHandler(tracker, logger),
		Catalog: apirest.NewCatalogHandler(catalog),
	})

	sseH := sse.NewHandler(pubsub, logger, cfg.Loot.DropChannel, cfg.Weapon.EffectChannel)
	r.GET("/events", sseH.ServeSSE)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
		// event streams end when the server context is cancelled
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return lootSvc.Run(gctx) })
	if cfg.Catalog.Watch {
		g.Go(func() error { return catalog.Watch(gctx, cfg.Catalog.Debounce) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	sched.Stop()
	if err := arm.SaveAll(context.Background()); err != nil {
		logger.Warn("final save incomplete", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
