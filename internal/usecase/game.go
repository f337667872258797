package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/memorygame-backend/internal/apperror"
	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository"
)

type GameUseCase interface {
	StartGame(ctx context.Context, sessionID string) error
	MakeMove(ctx context.Context, sessionID string, pos1, pos2 int) (*entity.MoveResult, error)
	GetScore(ctx context.Context, sessionID string) (entity.Score, error)
}

type gameRepo interface {
	CreateOrReplace(ctx context.Context, sessionID string, game *entity.GameState) error
	GetBySessionID(ctx context.Context, sessionID string) (*entity.GameState, error)
	Update(ctx context.Context, sessionID string, fn func(game *entity.GameState) error) (*entity.GameState, error)
}

type gameUseCase struct {
	logger *slog.Logger

	gameRepo gameRepo
	shuffle  entity.ShuffleFunc
}

func NewGameUseCase(logger *slog.Logger, gameRepo gameRepo, shuffle entity.ShuffleFunc) GameUseCase {
	if shuffle == nil {
		shuffle = entity.DefaultShuffle
	}

	return &gameUseCase{
		logger:   logger.With("component", "game"),
		gameRepo: gameRepo,
		shuffle:  shuffle,
	}
}

// StartGame - deals a new board for the session, replacing any game in progress.
func (that *gameUseCase) StartGame(ctx context.Context, sessionID string) error {
	game := entity.NewGameState(that.shuffle)

	if err := that.gameRepo.CreateOrReplace(ctx, sessionID, game); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	that.logger.Debug("game started", "session", sessionID)

	return nil
}

func (that *gameUseCase) MakeMove(ctx context.Context, sessionID string, pos1, pos2 int) (*entity.MoveResult, error) {
	log := that.logger.With("method", "MakeMove", "session", sessionID)

	var result *entity.MoveResult

	_, err := that.gameRepo.Update(ctx, sessionID, func(game *entity.GameState) error {
		var flipErr error
		result, flipErr = game.Flip(pos1, pos2)

		return flipErr
	})
	if errors.Is(err, repository.ErrGameNotFound) {
		return nil, apperror.ErrGameNotStarted
	}

	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	log.Debug("move applied", "pos1", pos1, "pos2", pos2, "match", result.Match, "moves", result.Moves)

	if result.Completed {
		log.Info("game won", "moves", result.Moves)
	}

	return result, nil
}

// GetScore - reports the current counters; a session without a game scores zero.
func (that *gameUseCase) GetScore(ctx context.Context, sessionID string) (entity.Score, error) {
	game, err := that.gameRepo.GetBySessionID(ctx, sessionID)
	if errors.Is(err, repository.ErrGameNotFound) {
		return entity.Score{}, nil
	}

	if err != nil {
		return entity.Score{}, fmt.Errorf("failed to get game: %w", err)
	}

	return game.Score(), nil
}
