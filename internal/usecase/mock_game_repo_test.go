package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
)

type mockGameRepo struct {
	mock.Mock
}

func (that *mockGameRepo) CreateOrReplace(ctx context.Context, sessionID string, game *entity.GameState) error {
	args := that.Called(ctx, sessionID, game)
	return args.Error(0)
}

func (that *mockGameRepo) GetBySessionID(ctx context.Context, sessionID string) (*entity.GameState, error) {
	args := that.Called(ctx, sessionID)
	game, _ := args.Get(0).(*entity.GameState)
	return game, args.Error(1)
}

func (that *mockGameRepo) Update(ctx context.Context, sessionID string, fn func(game *entity.GameState) error) (*entity.GameState, error) {
	args := that.Called(ctx, sessionID, fn)
	game, _ := args.Get(0).(*entity.GameState)
	return game, args.Error(1)
}
