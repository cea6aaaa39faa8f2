package domain

import "strconv"

// PlayerKey identifies a trailer player instance. Real slides use the item id;
// sentinel clones use a clone-qualified id so they never share a player.
type PlayerKey string

// NewPlayerKey returns the player key for an item at a ring position.
func NewPlayerKey(itemID string, position int, clone bool) PlayerKey {
	if !clone {
		return PlayerKey(itemID)
	}
	return PlayerKey(itemID + "-clone-" + strconv.Itoa(position))
}

// SkipSegment is a time range of a trailer that should be skipped.
type SkipSegment struct {
	Category string  `json:"category"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}
