package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

func (that *Server) handleConnect(ctx context.Context, conn *connection, payload *Payload) error {
	log := that.logger.With("method", "handleConnect")

	playerID := conn.sessionID
	if payload.Player != nil && payload.Player.ID != "" {
		playerID = payload.Player.ID
	}

	player, err := that.uGame.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		log.Error("failed to create or get player", "error", err)
		return conn.sendError(ctx, actionConnect, "failed to create a new player")
	}

	that.bindPlayer(ctx, conn, player.ID)

	game, err := that.uGame.GetGame(ctx, player.ID)
	if err != nil {
		log.Error("failed to get game", "playerID", player.ID, "error", err)
		return conn.sendError(ctx, actionConnect, "failed to get the game")
	}

	stats, err := that.uGame.BestStats(ctx, player.ID)
	if err != nil {
		// stats are optional on connect
		log.Warn("failed to get best stats", "playerID", player.ID, "error", err)
	}

	if err = conn.send(ctx, actionConnect, Payload{Player: player, Game: &game, Stats: stats}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	log.Info("successfully connected player", "playerID", player.ID)

	return nil
}

func (that *Server) handleNewGame(ctx context.Context, conn *connection, payload *Payload) error {
	playerID, ok := that.resolvePlayer(ctx, conn, payload)
	if !ok {
		return conn.sendError(ctx, actionNewGame, "Player is required")
	}

	player, game, err := that.uGame.NewGame(ctx, playerID, payload.GridSize)
	if err != nil {
		return that.sendGameError(ctx, conn, actionNewGame, err)
	}

	return conn.send(ctx, actionNewGame, Payload{Player: player, Game: &game})
}

func (that *Server) handleResize(ctx context.Context, conn *connection, payload *Payload) error {
	playerID, ok := that.resolvePlayer(ctx, conn, payload)
	if !ok {
		return conn.sendError(ctx, actionResize, "Player is required")
	}

	player, game, err := that.uGame.ResizeGrid(ctx, playerID, payload.Delta)
	if err != nil {
		return that.sendGameError(ctx, conn, actionResize, err)
	}

	return conn.send(ctx, actionResize, Payload{Player: player, Game: &game})
}

func (that *Server) handleReset(ctx context.Context, conn *connection, payload *Payload) error {
	playerID, ok := that.resolvePlayer(ctx, conn, payload)
	if !ok {
		return conn.sendError(ctx, actionReset, "Player is required")
	}

	game, err := that.uGame.Reset(ctx, playerID)
	if err != nil {
		return that.sendGameError(ctx, conn, actionReset, err)
	}

	return conn.send(ctx, actionReset, Payload{Game: &game})
}

func (that *Server) handleFlip(ctx context.Context, conn *connection, payload *Payload) error {
	playerID, ok := that.resolvePlayer(ctx, conn, payload)
	if !ok {
		return conn.sendError(ctx, actionFlip, "Player is required")
	}

	if payload.Card == nil {
		return conn.sendError(ctx, actionFlip, "Card is required")
	}

	result, game, err := that.uGame.Flip(ctx, playerID, *payload.Card)
	if err != nil {
		return that.sendGameError(ctx, conn, actionFlip, err)
	}

	response := Payload{Game: &game, Result: result.String()}

	if result == entity.FlipWon {
		stats, statsErr := that.uGame.BestStats(ctx, playerID)
		if statsErr != nil {
			that.logger.Warn("failed to get best stats", "playerID", playerID, "error", statsErr)
		}
		response.Stats = stats
	}

	return conn.send(ctx, actionFlip, response)
}

// resolvePlayer - picks the player from the payload, falling back to the player bound by connect.
func (that *Server) resolvePlayer(ctx context.Context, conn *connection, payload *Payload) (string, bool) {
	if payload.Player != nil && payload.Player.ID != "" {
		that.bindPlayer(ctx, conn, payload.Player.ID)
		return payload.Player.ID, true
	}

	playerID := conn.currentPlayer()

	return playerID, playerID != ""
}

// bindPlayer - pushes clock ticks and mismatch resolutions of the player's round to this connection.
func (that *Server) bindPlayer(ctx context.Context, conn *connection, playerID string) {
	conn.bind(playerID, func() func() {
		return that.uGame.Watch(playerID, func(view entity.RoundView) {
			if err := conn.send(ctx, actionState, Payload{Game: &view}); err != nil {
				that.logger.Debug("failed to push game state", "playerID", playerID, "error", err)
			}
		})
	})
}

func (that *Server) sendGameError(ctx context.Context, conn *connection, action string, err error) error {
	switch {
	case errors.Is(err, apperror.ErrInvalidGridSize):
		return conn.sendError(ctx, action, fmt.Sprintf("grid size must be between %d and %d", entity.MinGridSize, entity.MaxGridSize))
	case errors.Is(err, apperror.ErrInvalidCard):
		return conn.sendError(ctx, action, "invalid card")
	case errors.Is(err, apperror.ErrNoActiveGame):
		return conn.sendError(ctx, action, "no active game")
	default:
		that.logger.Error("game request failed", "action", action, "error", err)
		return conn.sendError(ctx, action, "internal error")
	}
}
