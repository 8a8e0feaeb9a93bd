package entity

type Player struct {
	ID       string `json:"id"`
	GridSize int    `json:"grid_size,omitempty"`
}
