package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

const (
	DefaultStatsKey = "bestStats"

	maxWinRetries = 5
)

var ErrTooManyConflicts = errors.New("best stats changed concurrently too many times")

type StatsRepository interface {
	Get(ctx context.Context, playerID string) (entity.BestStats, error)
	RecordWin(ctx context.Context, playerID string, gridSize, moves, seconds int) (entity.BestRecord, error)
}

type dbStats struct {
	client *redis.Client
	key    string
}

// NewStatsRepository - stores the best stats of each player as one JSON document under "<key>:<playerID>".
func NewStatsRepository(client *redis.Client, key string) StatsRepository {
	if key == "" {
		key = DefaultStatsKey
	}

	return &dbStats{
		client: client,
		key:    key,
	}
}

func (that *dbStats) statsKey(playerID string) string {
	return that.key + ":" + playerID
}

// Get - loads the whole mapping. A missing or malformed document reads as empty stats.
func (that *dbStats) Get(ctx context.Context, playerID string) (entity.BestStats, error) {
	response, err := that.client.Get(ctx, that.statsKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return entity.BestStats{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get best stats: %w", err)
	}

	return decodeStats(response), nil
}

// RecordWin - merges a win into the stored mapping. Only the entry of gridSize changes.
func (that *dbStats) RecordWin(ctx context.Context, playerID string, gridSize, moves, seconds int) (entity.BestRecord, error) {
	key := that.statsKey(playerID)

	var record entity.BestRecord

	merge := func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get best stats: %w", err)
		}

		stats := decodeStats(response)
		record = stats.Merge(gridSize, moves, seconds)

		statsJSON, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal best stats: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, statsJSON, 0)
			return nil
		})

		return err
	}

	for range maxWinRetries {
		err := that.client.Watch(ctx, merge, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return entity.BestRecord{}, fmt.Errorf("failed to record win: %w", err)
		}

		return record, nil
	}

	return entity.BestRecord{}, ErrTooManyConflicts
}

func decodeStats(raw string) entity.BestStats {
	stats := entity.BestStats{}
	if raw == "" {
		return stats
	}

	if err := json.Unmarshal([]byte(raw), &stats); err != nil || stats == nil {
		return entity.BestStats{}
	}

	return stats
}
