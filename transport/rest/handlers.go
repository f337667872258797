package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/memorygame-backend/internal/apperror"
	"github.com/rocketscienceinc/memorygame-backend/internal/entity"
)

const (
	maxMoveBodyBytes = 1 << 10

	msgGameStarted      = "Game started successfully"
	msgGameNotStarted   = "Game not started"
	msgInvalidPositions = "Invalid card positions"
	msgEndpointNotFound = "Endpoint not found"
	msgMethodNotAllowed = "Method not allowed"
)

type gameUseCase interface {
	StartGame(ctx context.Context, sessionID string) error
	MakeMove(ctx context.Context, sessionID string, pos1, pos2 int) (*entity.MoveResult, error)
	GetScore(ctx context.Context, sessionID string) (entity.Score, error)
}

type gameHandler struct {
	logger  *slog.Logger
	game    gameUseCase
	metrics *Metrics
}

type startResponse struct {
	Success  bool   `json:"success"`
	GridSize int    `json:"gridSize"`
	Message  string `json:"message"`
}

type moveRequest struct {
	Pos1 *int `json:"pos1"`
	Pos2 *int `json:"pos2"`
}

type moveResponse struct {
	Success bool `json:"success"`
	Match   bool `json:"match"`
	Card1   int  `json:"card1"`
	Card2   int  `json:"card2"`
	Moves   int  `json:"moves"`
	GameWon bool `json:"gameWon"`
}

type scoreResponse struct {
	Success      bool `json:"success"`
	Moves        int  `json:"moves"`
	MatchedPairs int  `json:"matchedPairs"`
	GameWon      bool `json:"gameWon"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *gameHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := that.game.StartGame(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		that.writeError(w, r, err)
		return
	}

	that.metrics.gamesStarted.Inc()

	writeJSON(that.logger, w, http.StatusOK, startResponse{
		Success:  true,
		GridSize: entity.BoardSize,
		Message:  msgGameStarted,
	})
}

func (that *gameHandler) handleMove(w http.ResponseWriter, r *http.Request) {
	req, err := decodeMoveRequest(w, r)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	result, err := that.game.MakeMove(r.Context(), sessionIDFromContext(r.Context()), *req.Pos1, *req.Pos2)
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	that.metrics.observeMove(result.Match, result.Completed)

	writeJSON(that.logger, w, http.StatusOK, moveResponse{
		Success: true,
		Match:   result.Match,
		Card1:   result.Card1,
		Card2:   result.Card2,
		Moves:   result.Moves,
		GameWon: result.GameWon,
	})
}

func (that *gameHandler) handleScore(w http.ResponseWriter, r *http.Request) {
	score, err := that.game.GetScore(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		that.writeError(w, r, err)
		return
	}

	writeJSON(that.logger, w, http.StatusOK, scoreResponse{
		Success:      true,
		Moves:        score.Moves,
		MatchedPairs: score.MatchedPairs,
		GameWon:      score.GameWon,
	})
}

func (that *gameHandler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	that.writeError(w, r, fmt.Errorf("%w: %s", apperror.ErrEndpointNotFound, r.URL.Path))
}

func (that *gameHandler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(that.logger, w, http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed})
}

func decodeMoveRequest(w http.ResponseWriter, r *http.Request) (*moveRequest, error) {
	var req moveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMoveBodyBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode move: %w", err)
	}

	if req.Pos1 == nil || req.Pos2 == nil {
		return nil, apperror.ErrMissingPosition
	}

	return &req, nil
}

// statusFor - maps domain errors to HTTP; anything unrecognised surfaces as 500 with its message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrGameNotStarted):
		return http.StatusBadRequest, msgGameNotStarted
	case errors.Is(err, apperror.ErrInvalidPosition):
		return http.StatusBadRequest, msgInvalidPositions
	case errors.Is(err, apperror.ErrEndpointNotFound):
		return http.StatusNotFound, msgEndpointNotFound
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (that *gameHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		that.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(that.logger, w, status, errorResponse{Error: message})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
