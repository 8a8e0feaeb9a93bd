package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

const playerKeyPrefix = "player:"

type PlayerRepository interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type dbPlayer struct {
	client *redis.Client
}

// NewPlayerRepository - stores each player with its chosen grid size under "player:<id>".
func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

func playerKey(id string) string {
	return playerKeyPrefix + id
}

// CreateOrUpdate - writes the player. A grid size outside the playable range is rejected.
func (that *dbPlayer) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	if !entity.ValidGridSize(player.GridSize) {
		return fmt.Errorf("%w: player %s has %d", apperror.ErrInvalidGridSize, player.ID, player.GridSize)
	}

	playerJSON, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to marshal player: %w", err)
	}

	if err = that.client.Set(ctx, playerKey(player.ID), playerJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

// GetByID - loads the player. A stored grid size outside the playable range reads as unset.
func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	response, err := that.client.Get(ctx, playerKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	var player entity.Player
	if err = json.Unmarshal([]byte(response), &player); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	if !entity.ValidGridSize(player.GridSize) {
		player.GridSize = 0
	}

	return &player, nil
}
