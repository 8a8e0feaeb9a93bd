package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	app "github.com/rocketscienceinc/memory-game-backend/internal"
	"github.com/rocketscienceinc/memory-game-backend/internal/config"
)

const configPathEnv = "CONFIG_PATH"

// main - loads the config, builds the logger and serves the memory game until a shutdown signal.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	conf := initConfig()
	logger := initLogger(conf)

	logger.Info("memory game backend starting",
		"httpPort", conf.HTTPPort,
		"socketPort", conf.SocketPort,
		"defaultGridSize", conf.Game.DefaultGridSize,
	)

	if err := app.RunApp(logger, conf); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

// initConfig - reads CONFIG_PATH, or config.yml next to the working directory.
func initConfig() *config.Config {
	if path := os.Getenv(configPathEnv); path != "" {
		return config.MustLoad(path)
	}

	baseDir, err := os.Getwd()
	if err != nil {
		panic(fmt.Errorf("failed to get current directory: %w", err))
	}

	return config.MustLoad(filepath.Join(baseDir, "config.yml"))
}

// initLogger - JSON logger; an unknown level falls back to info.
func initLogger(conf *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(conf.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", conf.LogLevel)
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
