package entity

import "encoding/json"

// NoRecord marks a field of BestRecord that no win has set yet.
const NoRecord = -1

// BestRecord is the lowest move count and the lowest time ever reached on one grid size.
// The two fields are tracked independently and may come from different wins.
type BestRecord struct {
	BestMoves int `json:"bestScore"`
	BestTime  int `json:"bestTime"`
}

// bestRecordJSON tells a missing field apart from a zero one.
type bestRecordJSON struct {
	BestMoves *int `json:"bestScore,omitempty"`
	BestTime  *int `json:"bestTime,omitempty"`
}

// HasMoves reports whether a move count was recorded. No win takes zero moves.
func (that BestRecord) HasMoves() bool {
	return that.BestMoves > 0
}

// HasTime reports whether a time was recorded. Zero seconds is a real time.
func (that BestRecord) HasTime() bool {
	return that.BestTime >= 0
}

func (that BestRecord) MarshalJSON() ([]byte, error) {
	var raw bestRecordJSON

	if that.HasMoves() {
		moves := that.BestMoves
		raw.BestMoves = &moves
	}

	if that.HasTime() {
		seconds := that.BestTime
		raw.BestTime = &seconds
	}

	return json.Marshal(raw)
}

// UnmarshalJSON - missing, null or impossible fields decode to NoRecord.
func (that *BestRecord) UnmarshalJSON(data []byte) error {
	var raw bestRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*that = BestRecord{BestMoves: NoRecord, BestTime: NoRecord}

	if raw.BestMoves != nil && *raw.BestMoves > 0 {
		that.BestMoves = *raw.BestMoves
	}

	if raw.BestTime != nil && *raw.BestTime >= 0 {
		that.BestTime = *raw.BestTime
	}

	return nil
}

// BestStats maps a grid size to its best record. JSON keys are the stringified grid sizes.
type BestStats map[int]BestRecord

// Merge - folds a win into the record for gridSize and returns the updated record.
// A field without a record takes the new value. Records of other grid sizes are left as they are.
func (that BestStats) Merge(gridSize, moves, seconds int) BestRecord {
	current, ok := that[gridSize]
	if !ok {
		current = BestRecord{BestMoves: NoRecord, BestTime: NoRecord}
	}

	updated := BestRecord{BestMoves: moves, BestTime: seconds}

	if current.HasMoves() {
		updated.BestMoves = min(current.BestMoves, moves)
	}

	if current.HasTime() {
		updated.BestTime = min(current.BestTime, seconds)
	}

	that[gridSize] = updated

	return updated
}

// Get returns the record of gridSize. An entry with neither field set counts as missing.
func (that BestStats) Get(gridSize int) (BestRecord, bool) {
	record, ok := that[gridSize]
	if !ok || (!record.HasMoves() && !record.HasTime()) {
		return BestRecord{}, false
	}

	return record, true
}
