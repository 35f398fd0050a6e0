package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
	"github.com/rocketscienceinc/ticsync-backend/internal/service"
)

type sessionRepo interface {
	GetByKey(ctx context.Context, key string) (*entity.Session, error)
	ListOpenPublic(ctx context.Context) ([]*entity.Session, error)
	Subscribe(ctx context.Context, key string) (<-chan *entity.Session, func(), error)
}

// SessionManager is the single entry point the transports talk to. It owns no
// state of its own; every operation reads and writes the shared session record.
type SessionManager struct {
	logger *slog.Logger

	sessionRepo sessionRepo
	gameplay    service.GameplayService
	presence    service.PresenceService
}

func NewSessionManager(logger *slog.Logger, sessionRepo sessionRepo, gameplay service.GameplayService, presence service.PresenceService) *SessionManager {
	return &SessionManager{
		logger:      logger,
		sessionRepo: sessionRepo,
		gameplay:    gameplay,
		presence:    presence,
	}
}

func (that *SessionManager) CreateSession(ctx context.Context, creatorName, mode string) (*entity.Session, string, error) {
	session, seat, err := that.gameplay.Create(ctx, creatorName, mode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	return session, seat, nil
}

func (that *SessionManager) JoinSession(ctx context.Context, key, name, mode string) (*entity.Session, string, error) {
	session, seat, err := that.gameplay.Join(ctx, key, name, mode)
	if err != nil {
		return nil, "", fmt.Errorf("failed to join session: %w", err)
	}

	return session, seat, nil
}

func (that *SessionManager) MakeMove(ctx context.Context, key string, position int, symbol string) (*entity.Session, error) {
	session, err := that.gameplay.Move(ctx, key, position, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	return session, nil
}

func (that *SessionManager) RequestPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.gameplay.RequestPlayAgain(ctx, key, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to request rematch: %w", err)
	}

	return session, nil
}

func (that *SessionManager) CancelPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.gameplay.CancelPlayAgain(ctx, key, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel rematch: %w", err)
	}

	return session, nil
}

func (that *SessionManager) DeclinePlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.gameplay.DeclinePlayAgain(ctx, key, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to decline rematch: %w", err)
	}

	return session, nil
}

func (that *SessionManager) LeaveSession(ctx context.Context, key, symbol string) (*entity.Session, error) {
	session, err := that.gameplay.Leave(ctx, key, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to leave session: %w", err)
	}

	return session, nil
}

func (that *SessionManager) DeleteSession(ctx context.Context, key string) error {
	if err := that.gameplay.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (that *SessionManager) GetSession(ctx context.Context, key string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	return session, nil
}

func (that *SessionManager) ListOpenRooms(ctx context.Context) ([]*entity.Session, error) {
	sessions, err := that.sessionRepo.ListOpenPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open rooms: %w", err)
	}

	return sessions, nil
}

// Subscribe - opens the push-based snapshot stream for a session.
func (that *SessionManager) Subscribe(ctx context.Context, key string) (<-chan *entity.Session, func(), error) {
	updates, cancel, err := that.sessionRepo.Subscribe(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to session: %w", err)
	}

	return updates, cancel, nil
}

func (that *SessionManager) Heartbeat(ctx context.Context, key, seat string) error {
	if err := that.presence.Heartbeat(ctx, key, seat); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return nil
}

// MarkOffline - the deferred on-disconnect write performed on behalf of a
// client whose connection dropped.
func (that *SessionManager) MarkOffline(ctx context.Context, key, seat string) error {
	if err := that.presence.MarkOffline(ctx, key, seat); err != nil {
		return fmt.Errorf("failed to mark seat offline: %w", err)
	}

	return nil
}

// WatchPresence - runs the heartbeat and staleness timers for one seated
// client; blocks until the context ends or the session terminates.
func (that *SessionManager) WatchPresence(ctx context.Context, key, seat string) {
	that.presence.Watch(ctx, key, seat)
}
