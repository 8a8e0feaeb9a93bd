package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
	"github.com/rocketscienceinc/memory-game-backend/internal/memory"
)

const DefaultGridSize = 4

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
}

type statsRepo interface {
	Get(ctx context.Context, playerID string) (entity.BestStats, error)
	RecordWin(ctx context.Context, playerID string, gridSize, moves, seconds int) (entity.BestRecord, error)
}

type Options struct {
	DefaultGridSize int
	Session         memory.Options

	// NewRand, when set, gives every session its own shuffle source.
	NewRand func() *rand.Rand
}

// GameManager keeps one memory.Session per player and records wins in the stats store.
type GameManager struct {
	logger *slog.Logger

	playerRepo playerRepo
	statsRepo  statsRepo

	defaultGridSize int
	sessionOpts     memory.Options
	newRand         func() *rand.Rand

	mu          sync.RWMutex
	sessions    map[string]*memory.Session
	watchers    map[string]map[uint64]func(entity.RoundView)
	nextWatchID uint64
}

func NewGameManager(logger *slog.Logger, playerRepo playerRepo, statsRepo statsRepo, opts Options) *GameManager {
	if !entity.ValidGridSize(opts.DefaultGridSize) {
		opts.DefaultGridSize = DefaultGridSize
	}

	return &GameManager{
		logger: logger.With("component", "game_manager"),

		playerRepo: playerRepo,
		statsRepo:  statsRepo,

		defaultGridSize: opts.DefaultGridSize,
		sessionOpts:     opts.Session,
		newRand:         opts.NewRand,

		sessions: make(map[string]*memory.Session),
		watchers: make(map[string]map[uint64]func(entity.RoundView)),
	}
}

// GetOrCreatePlayer - returns the stored player, creating one when the id is empty or unknown.
func (that *GameManager) GetOrCreatePlayer(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		player, err := that.createPlayer(ctx, uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("failed to create new player: %w", err)
		}

		return player, nil
	}

	player, err := that.playerRepo.GetByID(ctx, id)
	if errors.Is(err, apperror.ErrPlayerNotFound) {
		player, err = that.createPlayer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to create player %s: %w", id, err)
		}

		return player, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if !entity.ValidGridSize(player.GridSize) {
		player.GridSize = that.defaultGridSize
	}

	return player, nil
}

// NewGame - starts a new round on an absolute grid size. An out of range size changes nothing.
func (that *GameManager) NewGame(ctx context.Context, playerID string, gridSize int) (*entity.Player, entity.RoundView, error) {
	if !entity.ValidGridSize(gridSize) {
		return nil, entity.RoundView{}, fmt.Errorf("%w: %d", apperror.ErrInvalidGridSize, gridSize)
	}

	player, err := that.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, entity.RoundView{}, fmt.Errorf("failed get player: %w", err)
	}

	return that.startRound(ctx, player, gridSize)
}

// ResizeGrid - starts a new round on the current grid size plus delta.
func (that *GameManager) ResizeGrid(ctx context.Context, playerID string, delta int) (*entity.Player, entity.RoundView, error) {
	player, err := that.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, entity.RoundView{}, fmt.Errorf("failed get player: %w", err)
	}

	gridSize := that.currentGridSize(player) + delta
	if !entity.ValidGridSize(gridSize) {
		return nil, entity.RoundView{}, fmt.Errorf("%w: %d", apperror.ErrInvalidGridSize, gridSize)
	}

	return that.startRound(ctx, player, gridSize)
}

// Reset - starts a new round on the current grid size.
func (that *GameManager) Reset(ctx context.Context, playerID string) (entity.RoundView, error) {
	player, err := that.GetOrCreatePlayer(ctx, playerID)
	if err != nil {
		return entity.RoundView{}, fmt.Errorf("failed get player: %w", err)
	}

	view, err := that.sessionFor(player.ID).Reset(that.currentGridSize(player))
	if err != nil {
		return entity.RoundView{}, fmt.Errorf("failed to reset round: %w", err)
	}

	that.attachBest(ctx, player.ID, &view)

	return view, nil
}

// Flip - clicks a card in the player's round. A winning flip is recorded in the stats store.
func (that *GameManager) Flip(ctx context.Context, playerID string, cardID int) (entity.FlipResult, entity.RoundView, error) {
	log := that.logger.With("method", "Flip", "playerID", playerID)

	session, ok := that.existingSession(playerID)
	if !ok {
		return entity.FlipIgnored, entity.RoundView{}, apperror.ErrNoActiveGame
	}

	result, view, err := session.Flip(cardID)
	if err != nil {
		return entity.FlipIgnored, view, fmt.Errorf("failed make flip: %w", err)
	}

	if result != entity.FlipWon {
		return result, view, nil
	}

	record, err := that.statsRepo.RecordWin(ctx, playerID, view.GridSize, view.Moves, view.ElapsedSeconds)
	if err != nil {
		// the round is won either way
		log.Error("failed to record win", "error", err)
		return result, view, nil
	}

	log.Info("round won", "gridSize", view.GridSize, "moves", view.Moves, "seconds", view.ElapsedSeconds)
	view.Best = &record

	return result, view, nil
}

// GetGame - returns the player's current round, starting one on the player's grid size if there is none.
func (that *GameManager) GetGame(ctx context.Context, playerID string) (entity.RoundView, error) {
	if session, ok := that.existingSession(playerID); ok {
		view, err := session.View()
		if err == nil {
			that.attachBest(ctx, playerID, &view)
			return view, nil
		}
	}

	return that.Reset(ctx, playerID)
}

func (that *GameManager) BestStats(ctx context.Context, playerID string) (entity.BestStats, error) {
	stats, err := that.statsRepo.Get(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get best stats: %w", err)
	}

	return stats, nil
}

func (that *GameManager) BestRecord(ctx context.Context, playerID string, gridSize int) (entity.BestRecord, error) {
	if !entity.ValidGridSize(gridSize) {
		return entity.BestRecord{}, fmt.Errorf("%w: %d", apperror.ErrInvalidGridSize, gridSize)
	}

	stats, err := that.BestStats(ctx, playerID)
	if err != nil {
		return entity.BestRecord{}, err
	}

	record, ok := stats.Get(gridSize)
	if !ok {
		return entity.BestRecord{}, fmt.Errorf("%w: grid size %d", apperror.ErrRecordNotFound, gridSize)
	}

	return record, nil
}

// Watch - subscribes fn to round updates that happen without player input. The returned func unsubscribes.
// When the last watcher of a player leaves, the player's session is closed and dropped.
func (that *GameManager) Watch(playerID string, fn func(entity.RoundView)) func() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextWatchID++
	watchID := that.nextWatchID

	if that.watchers[playerID] == nil {
		that.watchers[playerID] = make(map[uint64]func(entity.RoundView))
	}
	that.watchers[playerID][watchID] = fn

	var once sync.Once

	return func() {
		once.Do(func() {
			that.unwatch(playerID, watchID)
		})
	}
}

func (that *GameManager) unwatch(playerID string, watchID uint64) {
	that.mu.Lock()

	delete(that.watchers[playerID], watchID)
	if len(that.watchers[playerID]) > 0 {
		that.mu.Unlock()
		return
	}

	delete(that.watchers, playerID)

	session, ok := that.sessions[playerID]
	delete(that.sessions, playerID)
	that.mu.Unlock()

	if ok {
		session.Close()
		that.logger.Debug("session closed, no watchers left", "playerID", playerID)
	}
}

// Close - stops every running session.
func (that *GameManager) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for playerID, session := range that.sessions {
		session.Close()
		delete(that.sessions, playerID)
	}
}

// startRound - stores the player's grid size, then replaces the round. A failed write keeps the old round.
func (that *GameManager) startRound(ctx context.Context, player *entity.Player, gridSize int) (*entity.Player, entity.RoundView, error) {
	if player.GridSize != gridSize {
		updated := *player
		updated.GridSize = gridSize
		if err := that.playerRepo.CreateOrUpdate(ctx, &updated); err != nil {
			return nil, entity.RoundView{}, fmt.Errorf("failed update player: %w", err)
		}
		player = &updated
	}

	view, err := that.sessionFor(player.ID).Reset(gridSize)
	if err != nil {
		return nil, entity.RoundView{}, fmt.Errorf("failed to start round: %w", err)
	}

	that.attachBest(ctx, player.ID, &view)

	return player, view, nil
}

func (that *GameManager) createPlayer(ctx context.Context, id string) (*entity.Player, error) {
	player := &entity.Player{
		ID:       id,
		GridSize: that.defaultGridSize,
	}

	if err := that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, nil
}

func (that *GameManager) currentGridSize(player *entity.Player) int {
	if session, ok := that.existingSession(player.ID); ok {
		if size := session.GridSize(); size != 0 {
			return size
		}
	}

	return player.GridSize
}

func (that *GameManager) existingSession(playerID string) (*memory.Session, bool) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.sessions[playerID]

	return session, ok
}

func (that *GameManager) sessionFor(playerID string) *memory.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	if session, ok := that.sessions[playerID]; ok {
		return session
	}

	opts := that.sessionOpts
	opts.Rand = nil
	if that.newRand != nil {
		opts.Rand = that.newRand()
	}

	session := memory.NewSession(opts, func(view entity.RoundView) {
		that.broadcast(playerID, view)
	})
	that.sessions[playerID] = session

	return session
}

func (that *GameManager) broadcast(playerID string, view entity.RoundView) {
	that.mu.RLock()
	watchers := make([]func(entity.RoundView), 0, len(that.watchers[playerID]))
	for _, fn := range that.watchers[playerID] {
		watchers = append(watchers, fn)
	}
	that.mu.RUnlock()

	for _, fn := range watchers {
		fn(view)
	}
}

func (that *GameManager) attachBest(ctx context.Context, playerID string, view *entity.RoundView) {
	stats, err := that.statsRepo.Get(ctx, playerID)
	if err != nil {
		that.logger.Warn("failed to load best stats", "playerID", playerID, "error", err)
		return
	}

	if record, ok := stats.Get(view.GridSize); ok {
		view.Best = &record
	}
}
