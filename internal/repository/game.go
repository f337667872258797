package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/memorygame-backend/internal/apperror"
	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
	"github.com/rocketscienceinc/memorygame-backend/internal/repository/storage"
)

var ErrGameNotFound = errors.New("game not found")

// gameKey - the session key the game state lives under.
const gameKey = "game"

type GameRepository interface {
	CreateOrReplace(ctx context.Context, sessionID string, game *entity.GameState) error
	GetBySessionID(ctx context.Context, sessionID string) (*entity.GameState, error)
	Update(ctx context.Context, sessionID string, fn func(game *entity.GameState) error) (*entity.GameState, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type sessionStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
	Update(ctx context.Context, sessionID, key string, fn storage.UpdateFunc) error
	Delete(ctx context.Context, sessionID, key string) error
}

type sessionGame struct {
	store sessionStore
}

func NewGameRepository(store sessionStore) GameRepository {
	return &sessionGame{
		store: store,
	}
}

func (that *sessionGame) CreateOrReplace(ctx context.Context, sessionID string, game *entity.GameState) error {
	if sessionID == "" {
		return apperror.ErrSessionIDRequired
	}

	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	if err = that.store.Set(ctx, sessionID, gameKey, gameJSON); err != nil {
		return fmt.Errorf("failed to set game: %w", err)
	}

	return nil
}

func (that *sessionGame) GetBySessionID(ctx context.Context, sessionID string) (*entity.GameState, error) {
	if sessionID == "" {
		return nil, ErrGameNotFound
	}

	response, err := that.store.Get(ctx, sessionID, gameKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w by session id", err)
	}

	return decodeGame(response)
}

// Update - loads, mutates and stores the game as one atomic step for the session.
// A failing fn leaves the stored game unchanged.
func (that *sessionGame) Update(ctx context.Context, sessionID string, fn func(game *entity.GameState) error) (*entity.GameState, error) {
	if sessionID == "" {
		return nil, ErrGameNotFound
	}

	var updated *entity.GameState

	err := that.store.Update(ctx, sessionID, gameKey, func(current []byte) ([]byte, error) {
		game, err := decodeGame(current)
		if err != nil {
			return nil, err
		}

		if err = fn(game); err != nil {
			return nil, err
		}

		gameJSON, err := json.Marshal(game)
		if err != nil {
			return nil, fmt.Errorf("could not marshal game: %w", err)
		}

		updated = game

		return gameJSON, nil
	})
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (that *sessionGame) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if err := that.store.Delete(ctx, sessionID, gameKey); err != nil {
		return fmt.Errorf("failed to delete game by session id: %w", err)
	}

	return nil
}

func decodeGame(data []byte) (*entity.GameState, error) {
	var game entity.GameState
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal game: %w", apperror.ErrCorruptedState, err)
	}

	if err := game.Validate(); err != nil {
		return nil, err
	}

	return &game, nil
}
