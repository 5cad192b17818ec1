package saves

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/novel-engine/pkg/conditionals"
)

const (
	// SlotCount is the number of save slots a new store starts with.
	SlotCount = 15

	// MaxSlots bounds how far Save may grow the slot array.
	MaxSlots = 100

	// TimestampLayout formats Slot.Timestamp.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Slot is one saved game.
type Slot struct {
	SlotID    int               `json:"slot_id"`
	SceneID   string            `json:"scene_id"`
	Timestamp string            `json:"timestamp"`
	GameVars  conditionals.Vars `json:"game_vars"`
	History   []string          `json:"history"`
	Thumbnail string            `json:"thumbnail"`
}

// Slots is the persisted slot array. A nil entry is an empty slot.
type Slots []*Slot

// Empty returns SlotCount empty slots.
func Empty() Slots {
	return make(Slots, SlotCount)
}

// Get returns the slot at index, or nil if it is out of range or empty.
func (s Slots) Get(index int) *Slot {
	if index < 0 || index >= len(s) {
		return nil
	}
	return s[index]
}

// Put stores slot at index, growing the array with empty slots as needed.
func (s Slots) Put(index int, slot *Slot) Slots {
	for len(s) <= index {
		s = append(s, nil)
	}
	s[index] = slot
	return s
}

// Decode parses a persisted slot array.
func Decode(blob string) (Slots, error) {
	var slots Slots
	if err := json.Unmarshal([]byte(blob), &slots); err != nil {
		return nil, fmt.Errorf("failed to decode save slots: %w", err)
	}
	if slots == nil {
		return nil, fmt.Errorf("failed to decode save slots: not an array")
	}
	return slots, nil
}

// Encode serializes the whole slot array.
func Encode(slots Slots) (string, error) {
	if slots == nil {
		slots = Empty()
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return "", fmt.Errorf("failed to encode save slots: %w", err)
	}
	return string(data), nil
}

// Summary describes a slot for a load menu.
type Summary struct {
	Slot      int    `json:"slot"` // 1-based, as shown to players
	SceneID   string `json:"scene_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Empty     bool   `json:"empty"`
}

// Summarize lists every slot, empty ones included.
func (s Slots) Summarize() []Summary {
	out := make([]Summary, len(s))
	for i, slot := range s {
		out[i] = Summary{Slot: i + 1, Empty: slot == nil}
		if slot != nil {
			out[i].SceneID = slot.SceneID
			out[i].Timestamp = slot.Timestamp
			out[i].Thumbnail = slot.Thumbnail
		}
	}
	return out
}
