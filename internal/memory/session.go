package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
	"github.com/rocketscienceinc/memory-game-backend/internal/entity"
)

const (
	DefaultMismatchDelay = time.Second
	DefaultTickInterval  = time.Second
)

type Options struct {
	MismatchDelay time.Duration
	TickInterval  time.Duration

	// Rand is used for shuffling under the session lock; nil means the global source.
	// A source must not be shared between sessions.
	Rand *rand.Rand
}

// Listener receives the round state after changes that happen outside a player action: clock ticks and mismatch resolution.
type Listener func(view entity.RoundView)

// Session owns one round at a time together with its clock and mismatch delay.
// Every event is applied under mu, so a turn is always fully resolved before the next event observes it.
type Session struct {
	mu sync.Mutex

	mismatchDelay time.Duration
	tickInterval  time.Duration
	rng           *rand.Rand
	listener      Listener

	round       *entity.Round
	lastRoundID uint64
	stopClock   context.CancelFunc
	mismatch    *time.Timer
	closed      bool
}

func NewSession(opts Options, listener Listener) *Session {
	if opts.MismatchDelay <= 0 {
		opts.MismatchDelay = DefaultMismatchDelay
	}

	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}

	return &Session{
		mismatchDelay: opts.MismatchDelay,
		tickInterval:  opts.TickInterval,
		rng:           opts.Rand,
		listener:      listener,
	}
}

// Reset - cancels everything pending for the current round and starts a new one.
// An invalid grid size leaves the current round untouched.
func (that *Session) Reset(gridSize int) (entity.RoundView, error) {
	deck, err := that.newDeck(gridSize)
	if err != nil {
		return entity.RoundView{}, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	that.cancelPendingLocked()

	that.lastRoundID++
	that.round = entity.NewRound(that.lastRoundID, gridSize, deck)
	that.closed = false

	return that.round.View(), nil
}

func (that *Session) newDeck(gridSize int) (entity.Deck, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	deck, err := entity.NewDeck(gridSize, that.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck: %w", err)
	}

	return deck, nil
}

// Flip - applies a click to the current round and schedules the deferred work it implies.
func (that *Session) Flip(id int) (entity.FlipResult, entity.RoundView, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.round == nil {
		return entity.FlipIgnored, entity.RoundView{}, apperror.ErrNoActiveGame
	}

	result, err := that.round.Flip(id)
	if err != nil {
		return entity.FlipIgnored, that.round.View(), fmt.Errorf("failed to flip card: %w", err)
	}

	if that.round.Started && that.stopClock == nil && !that.round.Won && !that.closed {
		that.startClockLocked(that.round.ID)
	}

	switch result {
	case entity.FlipMismatched:
		roundID := that.round.ID
		that.mismatch = time.AfterFunc(that.mismatchDelay, func() {
			that.resolveMismatch(roundID)
		})
	case entity.FlipWon:
		that.cancelPendingLocked()
	case entity.FlipIgnored, entity.FlipRevealed, entity.FlipMatched:
	}

	return result, that.round.View(), nil
}

func (that *Session) View() (entity.RoundView, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.round == nil {
		return entity.RoundView{}, apperror.ErrNoActiveGame
	}

	return that.round.View(), nil
}

// GridSize returns the grid size of the current round, or 0 when no round exists.
func (that *Session) GridSize() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.round == nil {
		return 0
	}

	return that.round.GridSize
}

// Close - stops the clock and drops any pending mismatch resolution. The round stays readable.
func (that *Session) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.cancelPendingLocked()
	that.closed = true
}

func (that *Session) startClockLocked(roundID uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	that.stopClock = cancel

	go func() {
		ticker := time.NewTicker(that.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				that.tick(roundID)
			}
		}
	}()
}

func (that *Session) tick(roundID uint64) {
	that.mu.Lock()

	if that.closed || that.round == nil || that.round.ID != roundID || !that.round.Tick() {
		that.mu.Unlock()
		return
	}

	view := that.round.View()
	that.mu.Unlock()

	that.notify(view)
}

func (that *Session) resolveMismatch(roundID uint64) {
	that.mu.Lock()

	if that.closed || that.round == nil || that.round.ID != roundID || !that.round.ResolveMismatch() {
		that.mu.Unlock()
		return
	}

	that.mismatch = nil
	view := that.round.View()
	that.mu.Unlock()

	that.notify(view)
}

func (that *Session) cancelPendingLocked() {
	if that.stopClock != nil {
		that.stopClock()
		that.stopClock = nil
	}

	if that.mismatch != nil {
		that.mismatch.Stop()
		that.mismatch = nil
	}
}

func (that *Session) notify(view entity.RoundView) {
	if that.listener != nil {
		that.listener(view)
	}
}
