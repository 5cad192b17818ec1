package state

import (
	"errors"
	"fmt"
	"math"

	"github.com/jwebster45206/novel-engine/pkg/command"
)

var (
	// ErrUnknownIntent is returned for intent types the session does not handle.
	ErrUnknownIntent = errors.New("unknown intent")

	// ErrInvalidIntent is returned for intents missing or misusing their fields.
	ErrInvalidIntent = errors.New("invalid intent")
)

// IntentType names a player action.
type IntentType string

const (
	IntentNext           IntentType = "next"
	IntentPrev           IntentType = "prev"
	IntentChoose         IntentType = "choose"
	IntentChangeScene    IntentType = "change_scene"
	IntentSave           IntentType = "save"
	IntentLoad           IntentType = "load"
	IntentToggleAutoPlay IntentType = "toggle_autoplay"
	IntentToggleSkip     IntentType = "toggle_skip"
	IntentSetTextSpeed   IntentType = "set_text_speed"
	IntentSetAutoSpeed   IntentType = "set_auto_speed"
	IntentSelectMajor    IntentType = "select_major"
	IntentSelectMinor    IntentType = "select_minor"
	IntentBackToWorld    IntentType = "back_to_world"
	IntentPerformAction  IntentType = "perform_action"
	IntentSetMode        IntentType = "set_mode"
)

// Intent is a player action sent to a session. Only the fields its Type uses are read.
type Intent struct {
	Type       IntentType `json:"type"`
	Index      *int       `json:"index,omitempty"`
	SceneID    string     `json:"scene_id,omitempty"`
	Slot       *int       `json:"slot,omitempty"`
	Thumbnail  string     `json:"thumbnail,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	LocationID string     `json:"location_id,omitempty"`
	ActionID   string     `json:"action_id,omitempty"`
	Mode       string     `json:"mode,omitempty"`
}

// Validate checks that the intent is known and carries the fields it needs.
func (in Intent) Validate() error {
	switch in.Type {
	case IntentNext, IntentPrev, IntentToggleAutoPlay, IntentToggleSkip, IntentBackToWorld:
		return nil
	case IntentChoose:
		if in.Index == nil {
			return invalid(in, "index is required")
		}
	case IntentChangeScene:
		if in.SceneID == "" {
			return invalid(in, "scene_id is required")
		}
	case IntentSave, IntentLoad:
		if in.Slot == nil {
			return invalid(in, "slot is required")
		}
	case IntentSetTextSpeed, IntentSetAutoSpeed:
		if in.Speed == nil || !(*in.Speed > 0) || math.IsInf(*in.Speed, 0) {
			return invalid(in, "speed must be a positive number")
		}
	case IntentSelectMajor, IntentSelectMinor:
		if in.LocationID == "" {
			return invalid(in, "location_id is required")
		}
	case IntentPerformAction:
		if in.ActionID == "" {
			return invalid(in, "action_id is required")
		}
	case IntentSetMode:
		if _, err := command.ParseMode(in.Mode); err != nil {
			return invalid(in, err.Error())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntent, in.Type)
	}
	return nil
}

func invalid(in Intent, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidIntent, in.Type, msg)
}

func Next() Intent           { return Intent{Type: IntentNext} }
func Prev() Intent           { return Intent{Type: IntentPrev} }
func ToggleAutoPlay() Intent { return Intent{Type: IntentToggleAutoPlay} }
func ToggleSkip() Intent     { return Intent{Type: IntentToggleSkip} }
func BackToWorld() Intent    { return Intent{Type: IntentBackToWorld} }

func Choose(index int) Intent {
	return Intent{Type: IntentChoose, Index: &index}
}

func ChangeScene(sceneID string) Intent {
	return Intent{Type: IntentChangeScene, SceneID: sceneID}
}

func Save(slot int, thumbnail string) Intent {
	return Intent{Type: IntentSave, Slot: &slot, Thumbnail: thumbnail}
}

func Load(slot int) Intent {
	return Intent{Type: IntentLoad, Slot: &slot}
}

func SetTextSpeed(speed float64) Intent {
	return Intent{Type: IntentSetTextSpeed, Speed: &speed}
}

func SetAutoSpeed(speed float64) Intent {
	return Intent{Type: IntentSetAutoSpeed, Speed: &speed}
}

func SelectMajor(id string) Intent {
	return Intent{Type: IntentSelectMajor, LocationID: id}
}

func SelectMinor(id string) Intent {
	return Intent{Type: IntentSelectMinor, LocationID: id}
}

func PerformAction(id string) Intent {
	return Intent{Type: IntentPerformAction, ActionID: id}
}

func SetMode(mode command.Mode) Intent {
	return Intent{Type: IntentSetMode, Mode: string(mode)}
}
