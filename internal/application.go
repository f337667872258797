package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/memorygame-backend/internal/config"
	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository/storage"
	"github.com/rocketscienceinc/memorygame-backend/internal/usecase"
	"github.com/rocketscienceinc/memorygame-backend/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

type sessionStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Update(ctx context.Context, sessionID, key string, fn storage.UpdateFunc) error
	Delete(ctx context.Context, sessionID, key string) error
	Close() error
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	store, err := openStore(ctx, log, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = store.Close(); err != nil {
			log.Error("could not close session storage", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gameRepo := repository.NewGameRepository(store)
	gameUseCase := usecase.NewGameUseCase(logger, gameRepo, entity.DefaultShuffle)
	server := rest.New(logger, conf, gameUseCase, rest.NewMetrics(registry))

	log.Info("Starting HTTP server", "port", conf.HTTPPort, "base_path", conf.BasePath, "storage", conf.Storage)
	if err = server.Start(ctx); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

func openStore(ctx context.Context, log *slog.Logger, conf *config.Config) (sessionStore, error) {
	switch conf.Storage {
	case config.StorageMemory:
		memoryStorage := storage.NewMemoryStorage(conf.Session.TTL)
		if conf.Session.TTL > 0 && conf.Session.JanitorPeriod > 0 {
			go memoryStorage.RunJanitor(ctx, conf.Session.JanitorPeriod)
		}

		log.Warn("using in-memory session storage, sessions are lost on restart")

		return memoryStorage, nil
	default:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, &redis.Options{
			Addr:     redisAddrString,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}, conf.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return redisStorage, nil
	}
}
