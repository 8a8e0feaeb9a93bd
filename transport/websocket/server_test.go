package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
	"github.com/rocketscienceinc/memory-game-backend/internal/memory"
	"github.com/rocketscienceinc/memory-game-backend/internal/usecase"
)

type memoryPlayers struct {
	mu      sync.Mutex
	players map[string]entity.Player
}

func (that *memoryPlayers) CreateOrUpdate(_ context.Context, player *entity.Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.players[player.ID] = *player
	return nil
}

func (that *memoryPlayers) GetByID(_ context.Context, id string) (*entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	player, ok := that.players[id]
	if !ok {
		return nil, apperror.ErrPlayerNotFound
	}
	return &player, nil
}

type memoryStats struct {
	mu    sync.Mutex
	stats map[string]entity.BestStats
}

func (that *memoryStats) Get(_ context.Context, playerID string) (entity.BestStats, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	stats := entity.BestStats{}
	for size, record := range that.stats[playerID] {
		stats[size] = record
	}
	return stats, nil
}

func (that *memoryStats) RecordWin(_ context.Context, playerID string, gridSize, moves, seconds int) (entity.BestRecord, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.stats[playerID] == nil {
		that.stats[playerID] = entity.BestStats{}
	}
	return that.stats[playerID].Merge(gridSize, moves, seconds), nil
}

func newTestServer(t *testing.T) (context.Context, *websocket.Conn) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := usecase.NewGameManager(logger,
		&memoryPlayers{players: make(map[string]entity.Player)},
		&memoryStats{stats: make(map[string]entity.BestStats)},
		usecase.Options{
			DefaultGridSize: 4,
			Session:         memory.Options{MismatchDelay: 100 * time.Millisecond, TickInterval: time.Hour},
			NewRand: func() *rand.Rand {
				return rand.New(rand.NewPCG(3, 4))
			},
		})
	t.Cleanup(manager.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	srv := httptest.NewServer(New(logger, manager).Handler(ctx))
	t.Cleanup(srv.Close)

	wsURL := "ws" + srv.URL[len("http"):]

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	return ctx, conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, action string, payload any) {
	t.Helper()

	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, Message{Action: action, Payload: payloadJSON}))
}

func receive(t *testing.T, ctx context.Context, conn *websocket.Conn) (string, Payload) {
	t.Helper()

	var message Message
	require.NoError(t, wsjson.Read(ctx, conn, &message))

	var payload Payload
	require.NoError(t, json.Unmarshal(message.Payload, &payload))

	return message.Action, payload
}

// layout returns the card ids of every pair of the first 2x2 round of a session.
func layout(t *testing.T) [][2]int {
	t.Helper()

	// the connect round consumes the first shuffle of the session source
	rng := rand.New(rand.NewPCG(3, 4))
	_, err := entity.NewDeck(4, rng)
	require.NoError(t, err)
	deck, err := entity.NewDeck(2, rng)
	require.NoError(t, err)

	byValue := map[int][]int{}
	for _, card := range deck {
		byValue[card.Value] = append(byValue[card.Value], card.ID)
	}

	return [][2]int{
		{byValue[1][0], byValue[1][1]},
		{byValue[2][0], byValue[2][1]},
	}
}

func TestServer_Connect(t *testing.T) {
	t.Run("Connect returns the player and a fresh round", func(t *testing.T) {
		// Given: a connected client
		ctx, conn := newTestServer(t)

		// When: the client connects as p1
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})

		// Then: the default 4x4 round is returned with hidden values
		action, payload := receive(t, ctx, conn)
		assert.Equal(t, actionConnect, action)
		assert.Empty(t, payload.Error)
		require.NotNil(t, payload.Player)
		assert.Equal(t, "p1", payload.Player.ID)
		require.NotNil(t, payload.Game)
		assert.Len(t, payload.Game.Cards, 16)
		for _, card := range payload.Game.Cards {
			assert.Nil(t, card.Value)
		}
	})

	t.Run("Connect without a player id uses the session", func(t *testing.T) {
		ctx, conn := newTestServer(t)

		send(t, ctx, conn, actionConnect, Payload{})

		_, payload := receive(t, ctx, conn)
		require.NotNil(t, payload.Player)
		assert.NotEmpty(t, payload.Player.ID)
	})
}

func TestServer_Game(t *testing.T) {
	t.Run("Full round on a 2x2 grid is won and recorded", func(t *testing.T) {
		// Given: a connected player on a new 2x2 round
		ctx, conn := newTestServer(t)
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		receive(t, ctx, conn)

		send(t, ctx, conn, actionNewGame, Payload{GridSize: 2})
		action, payload := receive(t, ctx, conn)
		require.Equal(t, actionNewGame, action)
		require.Empty(t, payload.Error)
		require.Len(t, payload.Game.Cards, 4)

		// When: both pairs are flipped
		for _, pair := range layout(t) {
			for _, id := range pair {
				send(t, ctx, conn, actionFlip, Payload{Card: &id})
				_, payload = receive(t, ctx, conn)
				require.Empty(t, payload.Error)
			}
		}

		// Then: the last flip wins and carries the new record
		assert.Equal(t, "won", payload.Result)
		assert.True(t, payload.Game.Won)
		assert.Equal(t, 2, payload.Game.Moves)
		assert.Equal(t, entity.BestStats{2: {BestMoves: 2, BestTime: 0}}, payload.Stats)
	})

	t.Run("Mismatch is followed by a state push", func(t *testing.T) {
		// Given: a connected player on a new 2x2 round
		ctx, conn := newTestServer(t)
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		receive(t, ctx, conn)
		send(t, ctx, conn, actionNewGame, Payload{GridSize: 2})
		receive(t, ctx, conn)

		// When: two cards of different pairs are flipped
		pairs := layout(t)
		first, second := pairs[0][0], pairs[1][0]
		send(t, ctx, conn, actionFlip, Payload{Card: &first})
		receive(t, ctx, conn)
		send(t, ctx, conn, actionFlip, Payload{Card: &second})
		_, payload := receive(t, ctx, conn)
		require.Equal(t, "mismatched", payload.Result)
		require.True(t, payload.Game.Locked)

		// Then: the server pushes the cards turning back
		action, payload := receive(t, ctx, conn)
		assert.Equal(t, actionState, action)
		assert.False(t, payload.Game.Locked)
		assert.False(t, payload.Game.Cards[first].FaceUp)
	})

	t.Run("Invalid grid size is answered with an error", func(t *testing.T) {
		ctx, conn := newTestServer(t)
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		receive(t, ctx, conn)

		send(t, ctx, conn, actionNewGame, Payload{GridSize: 11})

		action, payload := receive(t, ctx, conn)
		assert.Equal(t, actionNewGame, action)
		assert.Equal(t, "grid size must be between 2 and 10", payload.Error)
	})

	t.Run("Resize and reset keep working on the same socket", func(t *testing.T) {
		ctx, conn := newTestServer(t)
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		receive(t, ctx, conn)

		send(t, ctx, conn, actionResize, Payload{Delta: 1})
		_, payload := receive(t, ctx, conn)
		require.Empty(t, payload.Error)
		assert.Equal(t, 5, payload.Game.GridSize)
		assert.Equal(t, 5, payload.Player.GridSize)

		send(t, ctx, conn, actionReset, Payload{})
		_, payload = receive(t, ctx, conn)
		require.Empty(t, payload.Error)
		assert.Equal(t, 5, payload.Game.GridSize)
		assert.Equal(t, 0, payload.Game.Moves)
	})

	t.Run("Flip without a card is rejected", func(t *testing.T) {
		ctx, conn := newTestServer(t)
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		receive(t, ctx, conn)

		send(t, ctx, conn, actionFlip, Payload{})

		_, payload := receive(t, ctx, conn)
		assert.Equal(t, "Card is required", payload.Error)
	})

	t.Run("Requests before connect need a player", func(t *testing.T) {
		ctx, conn := newTestServer(t)

		send(t, ctx, conn, actionReset, Payload{})

		_, payload := receive(t, ctx, conn)
		assert.Equal(t, "Player is required", payload.Error)
	})
}

func TestServer_BadMessages(t *testing.T) {
	t.Run("Malformed and unknown messages keep the socket open", func(t *testing.T) {
		// Given: a connected client
		ctx, conn := newTestServer(t)

		// When: garbage is sent
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))

		// Then: an error comes back
		_, payload := receive(t, ctx, conn)
		assert.Equal(t, "malformed message", payload.Error)

		// When: an unknown action is sent
		send(t, ctx, conn, "game:cheat", Payload{})

		// Then: an error comes back
		action, payload := receive(t, ctx, conn)
		assert.Equal(t, "game:cheat", action)
		assert.Equal(t, "unknown action", payload.Error)

		// And: the socket still serves requests
		send(t, ctx, conn, actionConnect, Payload{Player: &entity.Player{ID: "p1"}})
		action, payload = receive(t, ctx, conn)
		assert.Equal(t, actionConnect, action)
		assert.Empty(t, payload.Error)
	})
}
