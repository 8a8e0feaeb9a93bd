package entity

import (
	"fmt"
	"math/rand/v2"

	"github.com/rocketscienceinc/memory-game-backend/internal/apperror"
)

const (
	MinGridSize = 2
	MaxGridSize = 10
)

// Card is a single position on the board. Value is the pair identity shared by exactly two cards.
type Card struct {
	ID    int `json:"id"`
	Value int `json:"value"`
}

type Deck []Card

// ValidGridSize reports whether size is within [MinGridSize, MaxGridSize].
func ValidGridSize(size int) bool {
	return size >= MinGridSize && size <= MaxGridSize
}

// NewDeck - builds a shuffled deck of pairs for a gridSize x gridSize board.
// When the board has an odd number of cells the unpaired cell stays empty, so every value appears exactly twice.
func NewDeck(gridSize int, rng *rand.Rand) (Deck, error) {
	if !ValidGridSize(gridSize) {
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidGridSize, gridSize)
	}

	pairCount := gridSize * gridSize / 2

	values := make([]int, 0, pairCount*2)
	for i := 1; i <= pairCount; i++ {
		values = append(values, i, i)
	}

	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	deck := make(Deck, len(values))
	for i, value := range values {
		deck[i] = Card{ID: i, Value: value}
	}

	return deck, nil
}

func (that Deck) Contains(id int) bool {
	return id >= 0 && id < len(that)
}
