package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

const (
	sessionCookie   = "user_session"
	shutdownTimeout = 5 * time.Second
)

type uGame interface {
	GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error)
	GetGame(ctx context.Context, playerID string) (entity.RoundView, error)
	NewGame(ctx context.Context, playerID string, gridSize int) (*entity.Player, entity.RoundView, error)
	ResizeGrid(ctx context.Context, playerID string, delta int) (*entity.Player, entity.RoundView, error)
	Reset(ctx context.Context, playerID string) (entity.RoundView, error)
	Flip(ctx context.Context, playerID string, cardID int) (entity.FlipResult, entity.RoundView, error)
	BestStats(ctx context.Context, playerID string) (entity.BestStats, error)
	Watch(playerID string, fn func(entity.RoundView)) func()
}

type Server struct {
	logger *slog.Logger
	uGame  uGame

	handlers map[string]func(ctx context.Context, conn *connection, payload *Payload) error
}

func New(logger *slog.Logger, uGame uGame) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		uGame:  uGame,

		handlers: make(map[string]func(context.Context, *connection, *Payload) error),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionNewGame] = server.handleNewGame
	server.handlers[actionResize] = server.handleResize
	server.handlers[actionReset] = server.handleReset
	server.handlers[actionFlip] = server.handleFlip

	return server
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", that.Handler(ctx))

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Handler - upgrades requests to WebSocket connections that live until ctx is done or the client leaves.
func (that *Server) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	sessionID := that.setSessionCookie(writer, req)

	wsConn, err := websocket.Accept(writer, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error("websocket accept failed", "error", err)
		return
	}
	defer wsConn.CloseNow()

	conn := &connection{
		conn:      wsConn,
		sessionID: sessionID,
	}
	defer conn.unbind()

	log.Info("WebSocket connection established")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err = that.handleMessages(connCtx, conn); err != nil {
		log.Debug("websocket read ended", "error", err)
		return
	}

	wsConn.Close(websocket.StatusNormalClosure, "")
}

// handleMessages - processes messages from the client.
func (that *Server) handleMessages(ctx context.Context, conn *connection) error {
	log := that.logger.With("method", "handleMessages")

	for {
		_, data, err := conn.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			if err = conn.sendError(ctx, "", "malformed message"); err != nil {
				return err
			}
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			if err = conn.sendError(ctx, message.Action, "unknown action"); err != nil {
				return err
			}
			continue
		}

		var payload Payload
		if len(message.Payload) > 0 {
			if err = json.Unmarshal(message.Payload, &payload); err != nil {
				log.Warn("failed to unmarshal payload", "action", message.Action, "error", err)
				if err = conn.sendError(ctx, message.Action, "malformed payload"); err != nil {
					return err
				}
				continue
			}
		}

		if err = handler(ctx, conn, &payload); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// setSessionCookie - set user session. The session id doubles as the player id when the client sends none.
func (that *Server) setSessionCookie(writer http.ResponseWriter, req *http.Request) string {
	log := that.logger.With("method", "setSessionCookie")

	cookie, err := req.Cookie(sessionCookie)
	if err != nil || cookie.Value == "" {
		cookie = &http.Cookie{
			Name:     sessionCookie,
			Value:    uuid.NewString(),
			Expires:  time.Now().Add(24 * time.Hour),
			Path:     "/ws",
			HttpOnly: true,
		}
		http.SetCookie(writer, cookie)
		log.Debug("session cookie not found, new one created", "cookie", cookie.Value)

		return cookie.Value
	}

	log.Debug("session cookie found", "cookie", cookie.Value)

	return cookie.Value
}
