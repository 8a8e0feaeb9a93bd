package entity

// CardView is what a client may see of a card. Value is only present while the card is face up or solved.
type CardView struct {
	ID     int  `json:"id"`
	FaceUp bool `json:"face_up"`
	Solved bool `json:"solved"`
	Value  *int `json:"value,omitempty"`
}

type RoundView struct {
	RoundID        uint64      `json:"round_id"`
	GridSize       int         `json:"grid_size"`
	Cards          []CardView  `json:"cards"`
	Moves          int         `json:"moves"`
	ElapsedSeconds int         `json:"elapsed_seconds"`
	Won            bool        `json:"won"`
	Locked         bool        `json:"locked"`
	Best           *BestRecord `json:"best,omitempty"`
}

// View - builds a client view of the round; face-down cards do not reveal their value.
func (that *Round) View() RoundView {
	cards := make([]CardView, len(that.Deck))
	for i, card := range that.Deck {
		cards[i] = CardView{
			ID:     card.ID,
			FaceUp: that.IsFaceUp(card.ID),
			Solved: that.Solved[card.ID],
		}

		if cards[i].FaceUp || cards[i].Solved {
			value := card.Value
			cards[i].Value = &value
		}
	}

	return RoundView{
		RoundID:        that.ID,
		GridSize:       that.GridSize,
		Cards:          cards,
		Moves:          that.Moves,
		ElapsedSeconds: that.ElapsedSeconds,
		Won:            that.Won,
		Locked:         that.Locked,
	}
}
