package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ticsync-backend/internal/entity"
	"github.com/rocketscienceinc/ticsync-backend/internal/pkg"
)

type sessionManager interface {
	CreateSession(ctx context.Context, creatorName, mode string) (*entity.Session, string, error)
	JoinSession(ctx context.Context, key, name, mode string) (*entity.Session, string, error)
	MakeMove(ctx context.Context, key string, position int, symbol string) (*entity.Session, error)

	RequestPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)
	CancelPlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)
	DeclinePlayAgain(ctx context.Context, key, symbol string) (*entity.Session, error)

	LeaveSession(ctx context.Context, key, symbol string) (*entity.Session, error)
	DeleteSession(ctx context.Context, key string) error

	ListOpenRooms(ctx context.Context) ([]*entity.Session, error)
	Subscribe(ctx context.Context, key string) (<-chan *entity.Session, func(), error)

	Heartbeat(ctx context.Context, key, seat string) error
	MarkOffline(ctx context.Context, key, seat string) error
	WatchPresence(ctx context.Context, key, seat string)
}

type Server struct {
	logger  *slog.Logger
	manager sessionManager

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, client *client, message *Message) error
}

// client is the per-connection state: identity, the seat it currently holds
// and the cancel func tearing down its snapshot stream and presence watch.
type client struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	key    string
	seat   string
	detach context.CancelFunc
}

func (that *client) send(message Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err := that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func New(logger *slog.Logger, manager sessionManager) *Server {
	server := &Server{
		logger:  logger,
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers["connect"] = server.handleConnect
	server.handlers["session:create"] = server.handleCreate
	server.handlers["session:join"] = server.handleJoin
	server.handlers["session:move"] = server.handleMove
	server.handlers["session:rematch:request"] = server.handleRematchRequest
	server.handlers["session:rematch:cancel"] = server.handleRematchCancel
	server.handlers["session:rematch:decline"] = server.handleRematchDecline
	server.handlers["session:leave"] = server.handleLeave
	server.handlers["session:delete"] = server.handleDelete
	server.handlers["session:list"] = server.handleList
	server.handlers["session:heartbeat"] = server.handleHeartbeat

	return server
}

// Start - starts the WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveWS(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveWS - upgrades the connection and runs the per-client message loop.
func (that *Server) serveWS(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "serveWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	cl := &client{
		id:   pkg.GenerateClientID(),
		conn: conn,
	}

	log.Info("WebSocket connection established", "clientID", cl.id)

	defer that.closeClient(cl)

	for {
		var message Message
		if err = conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("client errored", "clientID", cl.id, "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			that.sendError(cl, "unknown_action", fmt.Errorf("unknown action %q", message.Action))
			continue
		}

		if err = handler(ctx, cl, &message); err != nil {
			that.sendError(cl, errorCode(err), err)
		}
	}
}

// closeClient - tears down the client's stream and performs the deferred
// on-disconnect presence write for its seat, best effort.
func (that *Server) closeClient(cl *client) {
	log := that.logger.With("method", "closeClient", "clientID", cl.id)

	if cl.detach != nil {
		cl.detach()
	}

	if cl.key != "" && cl.seat != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := that.manager.MarkOffline(ctx, cl.key, cl.seat); err != nil {
			// fire-and-forget cleanup; the staleness sweep is the backstop
			log.Debug("on-disconnect presence write failed", "error", err)
		}
	}

	if err := cl.conn.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}

	log.Info("WebSocket connection closed")
}

// attach - binds the client to a session: starts forwarding snapshots from
// the sync stream and runs the presence watch for its seat.
func (that *Server) attach(ctx context.Context, cl *client, key, seat string) error {
	log := that.logger.With("method", "attach", "clientID", cl.id, "key", key)

	if cl.detach != nil {
		cl.detach()
	}

	streamCtx, cancel := context.WithCancel(ctx)

	updates, unsubscribe, err := that.manager.Subscribe(streamCtx, key)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	cl.key = key
	cl.seat = seat
	cl.detach = func() {
		unsubscribe()
		cancel()
	}

	go func() {
		for session := range updates {
			payload := SessionPayload{Seat: seat, Session: session}
			if err := that.pushMessage(cl, "session:state", payload); err != nil {
				log.Debug("failed to push snapshot", "error", err)
				return
			}
		}
	}()

	if seat != "" {
		go that.manager.WatchPresence(streamCtx, key, seat)
	}

	return nil
}

func (that *Server) pushMessage(cl *client, action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return cl.send(Message{Action: action, Payload: raw})
}

func (that *Server) sendError(cl *client, code string, cause error) {
	payload := ErrorPayload{
		Code:    code,
		Message: cause.Error(),
	}

	if err := that.pushMessage(cl, "error", payload); err != nil {
		that.logger.Error("failed to send error message", "clientID", cl.id, "error", err)
	}
}
