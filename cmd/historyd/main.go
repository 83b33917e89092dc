package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/apitoken"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/config"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/server"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/history"
	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/pkg/kv"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("failed to init %s storage: %v", cfg.Storage, err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	historyStore := history.New(store,
		history.WithCapacity(cfg.Capacity),
		history.WithKeyPrefix(cfg.KeyPrefix),
		history.WithLogger(logger),
	)

	var verifier *apitoken.Verifier
	if strings.TrimSpace(cfg.APITokenSecret) != "" {
		verifier, err = apitoken.NewVerifier(apitoken.VerifierOptions{Secret: cfg.APITokenSecret})
		if err != nil {
			log.Fatalf("failed to init token verifier: %v", err)
		}
	} else {
		slog.Warn("apiTokenSecret not set, history API is unauthenticated")
	}

	var redisClient *goredis.Client
	if cfg.WriteRateLimitPerMinute > 0 {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	httpServer, err := server.New(server.Config{
		History:                 historyStore,
		TokenVerifier:           verifier,
		CORSOrigins:             cfg.CORSOrigins,
		RedisClient:             redisClient,
		WriteRateLimitPerMinute: cfg.WriteRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout stays disabled so event streams can run for hours.
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("history server listening", "addr", addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return historyStore.Run(gctx)
	})
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig.String())
		case <-gctx.Done():
		}
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
		}
		cancel()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

// buildStore assembles the persistence medium selected by config.
func buildStore(cfg config.FileConfig) (kv.Store, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return kv.NewMemory().Open(), nil, nil
	case config.StorageRedis:
		store, err := kv.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.StorageBolt:
		store, err := kv.NewBolt(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		// Bolt is file-local. An AMQP feed carries its change broadcasts
		// to the other contexts sharing the file.
		if strings.TrimSpace(cfg.AMQPURL) != "" {
			feed, err := kv.NewAMQPFeed(cfg.AMQPURL)
			if err != nil {
				_ = store.Close()
				return nil, nil, err
			}
			return kv.NewFeedStore(store, feed), func() {
				_ = feed.Close()
				_ = store.Close()
			}, nil
		}
		return store, func() { _ = store.Close() }, nil
	case config.StorageMinio:
		store, err := kv.NewObject(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}
