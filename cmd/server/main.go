package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/gravitas-games/craftd/internal/catalog"
	"github.com/gravitas-games/craftd/internal/config"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/persistence"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
	"github.com/gravitas-games/craftd/internal/server"
	"github.com/gravitas-games/craftd/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/server.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.CreateLogger(cfg.Log.Level)
	if err != nil {
		l.Warn("invalid log level, using default", zap.String("level", cfg.Log.Level), zap.Error(err))
	}
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Fatal("server stopped with error", zap.Error(err))
	}
	l.Info("server stopped")
}

func run(cfg *config.Config, l *logger.Logger) error {
	l.Info("starting craftd", zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	l.Info("catalog loaded",
		zap.Int("resources", cat.Resources.Len()),
		zap.Int("recipes", cat.Recipes.Count()),
		zap.String("digest", cat.Digest))

	store, err := persistence.Open(cfg, l)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var blacklist server.Blacklist
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		blacklist = server.NewRedisBlacklist(client, cfg.Redis.BlacklistPrefix)
	} else {
		l.Warn("redis not configured, token blacklist disabled")
	}

	validator, err := server.NewJWTValidator(cfg, blacklist, l)
	if err != nil {
		return err
	}

	manager := session.NewManager(store, cat.Resources, cat.Recipes,
		session.WithBags(cfg.Inventory.Bags...),
		session.WithCategory(inventory.Category(cfg.Inventory.Category)),
		session.WithTickRate(cfg.Server.TickRate),
		session.WithAutosave(time.Duration(cfg.Storage.AutosaveSeconds)*time.Second),
		session.WithLogger(l.Named("session")),
	)

	srv := server.New(cfg, manager, cat, validator, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)
	go validator.Run(ctx)

	errChan := make(chan error, 2)
	go func() {
		if err := srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
			errChan <- err
		}
	}()
	if cfg.Server.AdminPort != 0 {
		go func() {
			if err := srv.StartAdmin(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort)); err != nil {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case serveErr = <-errChan:
		l.Error("server error", zap.Error(serveErr))
	case sig := <-sigChan:
		l.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("error during shutdown", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		l.Error("failed to save inventories", zap.Error(err))
	}
	return serveErr
}
