// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/cache"
	"github.com/jason-s-yu/arena/internal/config"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/handlers"
	"github.com/jason-s-yu/arena/internal/lobby"
	"github.com/jason-s-yu/arena/internal/messaging"
	"github.com/jason-s-yu/arena/internal/notify"
	"github.com/jason-s-yu/arena/internal/slotrules"
	"github.com/sirupsen/logrus"
)

// store is everything the services read and write.
type store interface {
	lobby.Store
	lobby.RegistrationStore
	lobby.TournamentReader
	messaging.Store
}

// gateway delivers and streams notifications.
type gateway interface {
	lobby.Notifier
	handlers.Subscriber
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.Level())

	if cfg.JWTPrivateKey != "" {
		err = auth.InitFromPath(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.TokenExpireTime)
	} else {
		err = auth.Init(cfg.TokenExpireTime)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store
	switch cfg.Store {
	case "memory":
		mem := database.NewMemoryStore()
		if cfg.SeedFile != "" {
			n, err := database.LoadSeed(mem, cfg.SeedFile)
			if err != nil {
				logger.Fatalf("seed: %v", err)
			}
			logger.Infof("Loaded %d team registrations from %s", n, cfg.SeedFile)
		}
		st = mem
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		if err := database.ConnectDB(ctx, cfg.PostgresUser, cfg.PostgresPassword, cfg.PGHost, cfg.PGPort, cfg.PGDatabase); err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer database.DB.Close()
		if cfg.ApplySchema {
			if err := database.ApplySchema(ctx, database.DB); err != nil {
				logger.Fatalf("database: %v", err)
			}
		}
		st = database.NewPostgresStore(database.DB)
	}

	var (
		gw    gateway
		locks lobby.Locker
		lc    cache.Cache
	)
	if cfg.UsesRedis() {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		gw = notify.NewRedisGateway(rdb, cfg.RedisPrefix)
		locks = lobby.NewRedisLocker(rdb, cfg.RedisPrefix, cfg.AllocationLockTTL)
		lc = cache.NewRedis(rdb, cfg.RedisPrefix)
		logger.Infof("Connected to redis at %s", cfg.RedisAddr)
	} else {
		gw = notify.NewLocalGateway()
		locks = lobby.NewLocalLocker()
		lc = cache.NewMemory(nil)
	}

	rules := slotrules.Default
	manager := lobby.NewManager(lobby.Config{
		Store:         st,
		Registrations: st,
		Tournaments:   st,
		Notifier:      gw,
		Locks:         locks,
		Rules:         rules,
		Cache:         lc,
		CacheTTL:      cfg.LobbyCacheTTL,
		Logger:        logger.WithField("component", "lobby"),
	})
	dispatcher := messaging.NewDispatcher(st, st, manager, gw, cfg.MessageDeleteWindow,
		logger.WithField("component", "messaging"))

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.Deps{
			Rules:          rules,
			Lobbies:        manager,
			Messages:       dispatcher,
			Notifications:  gw,
			Logger:         logger,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}
}
