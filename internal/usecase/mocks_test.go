package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

type mockPlayerRepo struct {
	mock.Mock
}

func (that *mockPlayerRepo) CreateOrUpdate(ctx context.Context, player *entity.Player) error {
	args := that.Called(ctx, player)
	return args.Error(0)
}

func (that *mockPlayerRepo) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	args := that.Called(ctx, id)
	player, _ := args.Get(0).(*entity.Player)
	return player, args.Error(1)
}

type mockStatsRepo struct {
	mock.Mock
}

func (that *mockStatsRepo) Get(ctx context.Context, playerID string) (entity.BestStats, error) {
	args := that.Called(ctx, playerID)
	stats, _ := args.Get(0).(entity.BestStats)
	return stats, args.Error(1)
}

func (that *mockStatsRepo) RecordWin(ctx context.Context, playerID string, gridSize, moves, seconds int) (entity.BestRecord, error) {
	args := that.Called(ctx, playerID, gridSize, moves, seconds)
	record, _ := args.Get(0).(entity.BestRecord)
	return record, args.Error(1)
}
