package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/memory-game-backend/internal/config"
	"github.com/rocketscienceinc/memory-game-backend/internal/memory"
	"github.com/rocketscienceinc/memory-game-backend/internal/repository"
	"github.com/rocketscienceinc/memory-game-backend/internal/repository/storage"
	"github.com/rocketscienceinc/memory-game-backend/internal/usecase"
	"github.com/rocketscienceinc/memory-game-backend/transport/rest"
	"github.com/rocketscienceinc/memory-game-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	playerRepo := repository.NewPlayerRepository(redisStorage)
	statsRepo := repository.NewStatsRepository(redisStorage, conf.Game.StatsKey)

	gameUseCase := usecase.NewGameManager(logger, playerRepo, statsRepo, usecase.Options{
		DefaultGridSize: conf.Game.DefaultGridSize,
		Session: memory.Options{
			MismatchDelay: conf.Game.MismatchDelay,
			TickInterval:  conf.Game.TickInterval,
		},
	})
	defer gameUseCase.Close()

	restServer := rest.New(logger, gameUseCase, map[string]rest.Checker{
		"redis": redisChecker{client: redisStorage},
	})
	wsServer := websocket.New(logger, gameUseCase)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}

// redisChecker adapts the redis client to rest.Checker.
type redisChecker struct {
	client *redis.Client
}

func (that redisChecker) Check(ctx context.Context) error {
	return that.client.Ping(ctx).Err()
}
