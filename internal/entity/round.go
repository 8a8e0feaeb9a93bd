package entity

import (
	"fmt"
	"slices"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
)

type FlipResult int

const (
	FlipIgnored FlipResult = iota
	FlipRevealed
	FlipMatched
	FlipMismatched
	FlipWon
)

func (that FlipResult) String() string {
	switch that {
	case FlipIgnored:
		return "ignored"
	case FlipRevealed:
		return "revealed"
	case FlipMatched:
		return "matched"
	case FlipMismatched:
		return "mismatched"
	case FlipWon:
		return "won"
	default:
		return fmt.Sprintf("FlipResult(%d)", int(that))
	}
}

// Round is the state of one playthrough, from a reset to a win or the next reset.
type Round struct {
	ID             uint64       `json:"id"`
	GridSize       int          `json:"grid_size"`
	Deck           Deck         `json:"deck"`
	FaceUp         []int        `json:"face_up"`
	Solved         map[int]bool `json:"solved"`
	Moves          int          `json:"moves"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Started        bool         `json:"started"`
	Won            bool         `json:"won"`
	Locked         bool         `json:"locked"`
}

func NewRound(id uint64, gridSize int, deck Deck) *Round {
	return &Round{
		ID:       id,
		GridSize: gridSize,
		Deck:     deck,
		FaceUp:   make([]int, 0, 2),
		Solved:   make(map[int]bool, len(deck)),
	}
}

// Flip - applies a click on card id. Clicks that cannot change the round are reported as FlipIgnored.
func (that *Round) Flip(id int) (FlipResult, error) {
	if !that.Deck.Contains(id) {
		return FlipIgnored, fmt.Errorf("%w: %d", apperror.ErrInvalidCard, id)
	}

	if that.Locked || that.Won || that.Solved[id] || slices.Contains(that.FaceUp, id) {
		return FlipIgnored, nil
	}

	that.Started = true

	if len(that.FaceUp) == 0 {
		that.FaceUp = append(that.FaceUp, id)
		return FlipRevealed, nil
	}

	that.FaceUp = append(that.FaceUp, id)
	that.Moves++
	that.Locked = true

	return that.evaluate(), nil
}

// evaluate - compares the two face-up cards.
func (that *Round) evaluate() FlipResult {
	first, second := that.FaceUp[0], that.FaceUp[1]

	if that.Deck[first].Value != that.Deck[second].Value {
		// stays locked until ResolveMismatch
		return FlipMismatched
	}

	that.Solved[first] = true
	that.Solved[second] = true
	that.FaceUp = that.FaceUp[:0]
	that.Locked = false

	if that.IsComplete() {
		that.Won = true
		return FlipWon
	}

	return FlipMatched
}

// ResolveMismatch - turns an unmatched pair back face down and releases input.
func (that *Round) ResolveMismatch() bool {
	if !that.Locked || len(that.FaceUp) != 2 {
		return false
	}

	that.FaceUp = that.FaceUp[:0]
	that.Locked = false

	return true
}

// Tick - advances the clock by one second while the round is running.
func (that *Round) Tick() bool {
	if !that.Started || that.Won {
		return false
	}

	that.ElapsedSeconds++

	return true
}

func (that *Round) IsComplete() bool {
	return len(that.Deck) > 0 && len(that.Solved) == len(that.Deck)
}

func (that *Round) IsFaceUp(id int) bool {
	return slices.Contains(that.FaceUp, id)
}

func (that *Round) IsPendingMismatch() bool {
	return that.Locked && len(that.FaceUp) == 2
}
