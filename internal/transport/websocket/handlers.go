package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/ticsync-backend/internal/apperror"
)

func (that *Server) handleConnect(_ context.Context, cl *client, msg *Message) error {
	var payload ConnectPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal connect payload: %w", err)
		}
	}

	if payload.ClientID != "" {
		cl.id = payload.ClientID
		that.logger.Info("client reconnected", "clientID", cl.id)
	} else {
		that.logger.Info("client registered", "clientID", cl.id)
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{ClientID: cl.id})
}

func (that *Server) handleCreate(ctx context.Context, cl *client, msg *Message) error {
	var payload CreatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal create payload: %w", err)
	}

	session, seat, err := that.manager.CreateSession(ctx, payload.Name, payload.Mode)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err = that.attach(ctx, cl, session.Key, seat); err != nil {
		return err
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{ClientID: cl.id, Seat: seat, Session: session})
}

func (that *Server) handleJoin(ctx context.Context, cl *client, msg *Message) error {
	var payload JoinPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal join payload: %w", err)
	}

	session, seat, err := that.manager.JoinSession(ctx, payload.Key, payload.Name, payload.Mode)
	if err != nil {
		return fmt.Errorf("failed to join session: %w", err)
	}

	if err = that.attach(ctx, cl, session.Key, seat); err != nil {
		return err
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{ClientID: cl.id, Seat: seat, Session: session})
}

func (that *Server) handleMove(ctx context.Context, cl *client, msg *Message) error {
	var payload MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal move payload: %w", err)
	}

	session, err := that.manager.MakeMove(ctx, payload.Key, payload.Position, payload.Symbol)
	if err != nil {
		return fmt.Errorf("failed to make move: %w", err)
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{Seat: payload.Symbol, Session: session})
}

func (that *Server) handleRematchRequest(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal rematch payload: %w", err)
	}

	session, err := that.manager.RequestPlayAgain(ctx, payload.Key, payload.Symbol)
	if err != nil {
		return fmt.Errorf("failed to request rematch: %w", err)
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{Seat: payload.Symbol, Session: session})
}

func (that *Server) handleRematchCancel(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal rematch payload: %w", err)
	}

	session, err := that.manager.CancelPlayAgain(ctx, payload.Key, payload.Symbol)
	if err != nil {
		return fmt.Errorf("failed to cancel rematch: %w", err)
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{Seat: payload.Symbol, Session: session})
}

func (that *Server) handleRematchDecline(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal rematch payload: %w", err)
	}

	session, err := that.manager.DeclinePlayAgain(ctx, payload.Key, payload.Symbol)
	if err != nil {
		return fmt.Errorf("failed to decline rematch: %w", err)
	}

	return that.pushMessage(cl, msg.Action, SessionPayload{Seat: payload.Symbol, Session: session})
}

func (that *Server) handleLeave(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal leave payload: %w", err)
	}

	session, err := that.manager.LeaveSession(ctx, payload.Key, payload.Symbol)
	if err != nil {
		return fmt.Errorf("failed to leave session: %w", err)
	}

	if cl.detach != nil {
		cl.detach()
		cl.detach = nil
	}
	cl.key = ""
	cl.seat = ""

	return that.pushMessage(cl, msg.Action, SessionPayload{Seat: payload.Symbol, Session: session})
}

func (that *Server) handleDelete(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal delete payload: %w", err)
	}

	if err := that.manager.DeleteSession(ctx, payload.Key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if cl.detach != nil {
		cl.detach()
		cl.detach = nil
	}
	cl.key = ""
	cl.seat = ""

	return that.pushMessage(cl, msg.Action, SessionPayload{})
}

func (that *Server) handleList(ctx context.Context, cl *client, msg *Message) error {
	rooms, err := that.manager.ListOpenRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms: %w", err)
	}

	return that.pushMessage(cl, msg.Action, RoomsPayload{Rooms: rooms})
}

func (that *Server) handleHeartbeat(ctx context.Context, cl *client, msg *Message) error {
	var payload SeatPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal heartbeat payload: %w", err)
	}

	if err := that.manager.Heartbeat(ctx, payload.Key, payload.Symbol); err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return nil
}

// errorCode - maps the error taxonomy to wire codes surfaced to the UI.
func errorCode(err error) string {
	switch {
	case errors.Is(err, apperror.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, apperror.ErrSessionFull):
		return "full"
	case errors.Is(err, apperror.ErrModeMismatch):
		return "mode_mismatch"
	case errors.Is(err, apperror.ErrSessionTerminated):
		return "terminated"
	case errors.Is(err, apperror.ErrGameOver),
		errors.Is(err, apperror.ErrNotYourTurn),
		errors.Is(err, apperror.ErrCellOccupied),
		errors.Is(err, apperror.ErrInvalidCell),
		errors.Is(err, apperror.ErrNotSeated):
		return "invalid_move"
	default:
		return "sync_failure"
	}
}
