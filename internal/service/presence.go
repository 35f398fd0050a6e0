package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
)

// PresenceService infers a peer's liveness from self-reported heartbeats and
// unilaterally terminates a session when a seat is judged disconnected. The
// timer-driven Watch loop can be swapped for a push-based liveness protocol
// without touching the state machine.
type PresenceService interface {
	Heartbeat(ctx context.Context, key, seat string) error
	MarkOffline(ctx context.Context, key, seat string) error
	CheckStaleness(ctx context.Context, key string) (*entity.Session, error)
	IsStale(presence entity.Presence, now int64) bool

	Watch(ctx context.Context, key, seat string)
}

type presenceService struct {
	logger *slog.Logger

	sessionRepo sessionRepo
	gameplay    GameplayService

	heartbeatInterval time.Duration
	checkInterval     time.Duration
	offlineThreshold  time.Duration

	now func() time.Time
}

func NewPresenceService(logger *slog.Logger, sessionRepo sessionRepo, gameplay GameplayService, heartbeat, check, threshold time.Duration) PresenceService {
	return &presenceService{
		logger:            logger,
		sessionRepo:       sessionRepo,
		gameplay:          gameplay,
		heartbeatInterval: heartbeat,
		checkInterval:     check,
		offlineThreshold:  threshold,
		now:               time.Now,
	}
}

// Heartbeat - writes the seat's own presence as online with a fresh timestamp.
func (that *presenceService) Heartbeat(ctx context.Context, key, seat string) error {
	return that.writePresence(ctx, key, seat, true)
}

// MarkOffline - the on-disconnect write: flips the seat offline immediately so
// the peer does not have to wait out the staleness window.
func (that *presenceService) MarkOffline(ctx context.Context, key, seat string) error {
	return that.writePresence(ctx, key, seat, false)
}

func (that *presenceService) writePresence(ctx context.Context, key, seat string, online bool) error {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get session by key: %w", err)
	}

	session.SetPresence(seat, online, that.now().UnixMilli())

	if err = that.sessionRepo.CreateOrUpdate(ctx, session); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// IsStale - a seat is disconnected iff it reports offline and its last
// heartbeat is older than the threshold.
func (that *presenceService) IsStale(presence entity.Presence, now int64) bool {
	if presence.IsOnline {
		return false
	}

	return now-presence.LastSeen > that.offlineThreshold.Milliseconds()
}

// CheckStaleness - evaluates both seats; on the first seat judged
// disconnected it performs the Leave transition attributed to that seat.
// Returns the session when a termination happened, nil otherwise.
func (that *presenceService) CheckStaleness(ctx context.Context, key string) (*entity.Session, error) {
	session, err := that.sessionRepo.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}

	if session.IsTerminated {
		return nil, nil
	}

	now := that.now().UnixMilli()

	for _, seat := range []string{entity.PlayerX, entity.PlayerO} {
		if session.Players[seat] == "" {
			continue
		}

		presence, ok := session.PlayerPresence[seat]
		if !ok {
			continue
		}

		if !that.IsStale(presence, now) {
			continue
		}

		terminated, err := that.gameplay.Leave(ctx, key, seat)
		if err != nil {
			return nil, fmt.Errorf("failed to terminate stale session: %w", err)
		}

		that.logger.Info("seat judged disconnected, session terminated", "key", key, "seat", seat)

		return terminated, nil
	}

	return nil, nil
}

// Watch - runs the heartbeat and staleness timers for one seated client until
// the context ends. A vanished session stops the loop.
func (that *presenceService) Watch(ctx context.Context, key, seat string) {
	log := that.logger.With("method", "Watch", "key", key, "seat", seat)

	heartbeat := time.NewTicker(that.heartbeatInterval)
	defer heartbeat.Stop()

	check := time.NewTicker(that.checkInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if err := that.Heartbeat(ctx, key, seat); err != nil {
				if errors.Is(err, apperror.ErrSessionNotFound) {
					return
				}
				log.Error("heartbeat failed", "error", err)
			}
		case <-check.C:
			session, err := that.CheckStaleness(ctx, key)
			if err != nil {
				if errors.Is(err, apperror.ErrSessionNotFound) {
					return
				}
				log.Error("staleness check failed", "error", err)
				continue
			}

			if session != nil && session.IsTerminated {
				return
			}
		}
	}
}
