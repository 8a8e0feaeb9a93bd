package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

const (
	actionConnect = "connect"
	actionNewGame = "game:new"
	actionResize  = "game:resize"
	actionReset   = "game:reset"
	actionFlip    = "game:flip"
	actionState   = "game:state"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	Player   *entity.Player    `json:"player,omitempty"`
	Game     *entity.RoundView `json:"game,omitempty"`
	Stats    entity.BestStats  `json:"stats,omitempty"`
	GridSize int               `json:"grid_size,omitempty"`
	Delta    int               `json:"delta,omitempty"`
	Card     *int              `json:"card,omitempty"`
	Result   string            `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// connection is one client socket. Writes come from the read loop and from round watchers, so they are serialized.
type connection struct {
	conn      *websocket.Conn
	sessionID string

	writeMu sync.Mutex

	mu        sync.Mutex
	playerID  string
	stopWatch func()
}

func (that *connection) send(ctx context.Context, action string, payload Payload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if err = wsjson.Write(ctx, that.conn, Message{Action: action, Payload: payloadJSON}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func (that *connection) sendError(ctx context.Context, action, errorMsg string) error {
	if err := that.send(ctx, action, Payload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

// bind - attaches the connection to a player; the previous watcher, if any, is dropped.
func (that *connection) bind(playerID string, watch func() func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.playerID == playerID && that.stopWatch != nil {
		return
	}

	if that.stopWatch != nil {
		that.stopWatch()
	}

	that.playerID = playerID
	that.stopWatch = watch()
}

func (that *connection) currentPlayer() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.playerID
}

func (that *connection) unbind() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.stopWatch != nil {
		that.stopWatch()
		that.stopWatch = nil
	}
}
