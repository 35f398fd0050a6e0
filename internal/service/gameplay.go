package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
	"github.com/rocketscienceinc/ticsync-backend/internal/engine"
	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
	"github.com/rocketscienceinc/ticsync-backend/internal/pkg"
)

// GameplayService governs the legal transitions of a session record:
// creation, seat joining, move application, termination and the two-party
// rematch handshake.
type GameplayService interface {
	Create(ctx context.Context, creatorName, mode string) (*entity.Session, string, error)
	Join(ctx context.Context, key, name, mode string) (*entity.Session, string, error)

	Move(ctx context.Context, key string, position int, symbol string) (*entity.Session, error)

	RequestPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)
	CancelPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)
	DeclinePlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)

	Leave(ctx context.Context, key, symbol string) (*entity.Session, error)
	Delete(ctx context.Context, key string) error
}

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByKey(ctx context.Context, key string) (*entity.Session, error)
	DeleteByKey(ctx context.Context, key string) error
}

type gameplayService struct {
	logger *slog.Logger

	sessionRepo sessionRepo
}

func NewGameplayService(logger *slog.Logger, sessionRepo sessionRepo) GameplayService {
	return &gameplayService{
		logger:      logger,
		sessionRepo: sessionRepo,
	}
}

// Create - allocates a session with the creator seated at a random symbol.
// Returns the assigned seat.
func (that *gameplayService) Create(ctx context.Context, creatorName, mode string) (*entity.Session, string, error) {
	session := entity.NewSession(pkg.GenerateSessionKey(), creatorName, mode)

	if err := that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	seat, _ := session.SeatOf(creatorName)
	that.logger.Info("session created", "key", session.Key, "mode", mode, "seat", seat)

	return session, seat, nil
}

// Join - seats a player in an existing session. An empty mode skips the mode
// check, which is how a reconnecting client rejoins without knowing the mode.
func (that *gameplayService) Join(ctx context.Context, key, name, mode string) (*entity.Session, string, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get session by key: %w", err)
	}

	if session.IsTerminated {
		return nil, "", apperror.ErrSessionTerminated
	}

	if mode != "" && mode != session.Mode {
		return nil, "", fmt.Errorf("%w: session is %q", apperror.ErrModeMismatch, session.Mode)
	}

	if seat, open := session.OpenSeat(); open {
		session.Players[seat] = name
		session.SetPresence(seat, true, time.Now().UnixMilli())

		if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
			return nil, "", fmt.Errorf("failed to update session: %w", err)
		}

		that.logger.Info("player joined", "key", key, "seat", seat)

		return session, seat, nil
	}

	// both seats taken; the joiner may still be one of them reconnecting
	if seat, ok := session.SeatOf(name); ok {
		return session, seat, nil
	}

	return nil, "", apperror.ErrSessionFull
}

// Move - re-validates against the latest observed record, applies the move,
// evaluates the board and alternates the turn. The full record is written
// back; concurrent writers are resolved last-write-wins.
func (that *gameplayService) Move(ctx context.Context, key string, position int, symbol string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	if session.IsTerminated {
		return nil, apperror.ErrSessionTerminated
	}

	if session.IsGameOver {
		return nil, apperror.ErrGameOver
	}

	if session.Players[symbol] == "" {
		return nil, apperror.ErrNotSeated
	}

	if !engine.IsValidMove(session.Board, position, session.CurrentPlayer, symbol) {
		switch {
		case position < 0 || position > 8:
			return nil, fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, position)
		case session.Board[position] != entity.EmptyCell:
			return nil, apperror.ErrCellOccupied
		default:
			return nil, apperror.ErrNotYourTurn
		}
	}

	board, err := engine.ApplyMove(session.Board, position, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	result := engine.Evaluate(board)

	session.Board = board
	session.CurrentPlayer = engine.NextPlayer(symbol)
	session.Winner = result.Winner
	session.WinLine = result.WinningLine
	session.IsDraw = result.IsDraw
	session.IsGameOver = result.Winner != "" || result.IsDraw
	session.Touch(time.Now().UnixMilli())

	if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// RequestPlayAgain - records a rematch vote; when both seats have voted the
// round is reset in the same write.
func (that *gameplayService) RequestPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	session.PlayAgainRequests[symbol] = true

	if session.PlayAgainRequests[entity.PlayerX] && session.PlayAgainRequests[entity.PlayerO] {
		session.Reset(time.Now().UnixMilli())
		that.logger.Info("rematch accepted, session reset", "key", key, "firstTurn", session.CurrentPlayer)
	}

	if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// CancelPlayAgain - withdraws the caller's own rematch vote.
func (that *gameplayService) CancelPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	return that.clearPlayAgain(ctx, key, symbol)
}

// DeclinePlayAgain - rejects the opponent's rematch request by clearing the
// opponent's vote.
func (that *gameplayService) DeclinePlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	return that.clearPlayAgain(ctx, key, engine.NextPlayer(symbol))
}

func (that *gameplayService) clearPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	session.PlayAgainRequests[symbol] = false

	if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	return session, nil
}

// Leave - terminal transition: the leaver's seat is vacated, their presence
// goes offline and the session can no longer be played or resumed.
func (that *gameplayService) Leave(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	now := time.Now().UnixMilli()

	name := session.Players[symbol]
	if name == "" {
		name = symbol
	}

	session.Players[symbol] = ""
	session.SetPresence(symbol, false, now)
	session.Terminate(symbol, fmt.Sprintf("%s left the game", name), now)

	if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	that.logger.Info("player left, session terminated", "key", key, "seat", symbol)

	return session, nil
}

// Delete - removes the session document entirely, used when the creator
// abandons a game before an opponent joins or after a leave.
func (that *gameplayService) Delete(ctx context.Context, key string) error {
	if err := that.sessionRepo.DeleteByKey(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}
