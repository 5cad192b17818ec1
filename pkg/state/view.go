package state

import (
	"time"

	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/inventory"
	"github.com/jwebster45206/novel-engine/pkg/mapnav"
	"github.com/jwebster45206/novel-engine/pkg/saves"
)

// View is everything a client needs to draw a session.
type View struct {
	SessionID     string                 `json:"session_id"`
	Profile       string                 `json:"profile,omitempty"`
	Mode          command.Mode           `json:"mode"`
	Loading       bool                   `json:"loading"`
	SceneID       string                 `json:"scene_id"`
	Background    string                 `json:"background,omitempty"`
	Sprites       []SpriteView           `json:"sprites,omitempty"`
	Line          *LineView              `json:"line,omitempty"`
	Index         int                    `json:"index"`
	ShowChoices   bool                   `json:"show_choices"`
	Choices       []content.Choice       `json:"choices,omitempty"`
	CanRetreat    bool                   `json:"can_retreat"`
	History       []string               `json:"history"`
	DialogueLog   []content.DialogueLine `json:"dialogue_log"`
	Vars          conditionals.Vars      `json:"vars"`
	Playback      PlaybackView           `json:"playback"`
	Settings      Settings               `json:"settings"`
	Map           MapView                `json:"map"`
	Context       *ContextView           `json:"context,omitempty"`
	Info          InfoView               `json:"info"`
	Saves         []saves.Summary        `json:"saves"`
	Notifications []Notification         `json:"notifications"`
}

// LineView is the current dialogue line with its speaker resolved.
type LineView struct {
	Speaker string `json:"speaker"`
	Color   string `json:"color"`
	Text    string `json:"text"`
}

// SpriteView is a scene sprite with its image resolved from the character.
type SpriteView struct {
	ID       string           `json:"id"`
	Position content.Position `json:"position"`
	Image    string           `json:"image,omitempty"`
}

type PlaybackView struct {
	Mode     string `json:"mode"`
	AutoPlay bool   `json:"auto_play"`
	Skip     bool   `json:"skip"`
}

// Settings are the player-adjustable speeds, in seconds.
type Settings struct {
	TextSpeed     float64 `json:"text_speed"`
	AutoPlaySpeed float64 `json:"auto_play_speed"`
}

type MapView struct {
	Mode             mapnav.Mode                `json:"mode"`
	MajorLocationID  string                     `json:"major_location_id,omitempty"`
	MinorLocationID  string                     `json:"minor_location_id,omitempty"`
	World            []mapnav.MajorLocationView `json:"world,omitempty"`
	RegionID         string                     `json:"region_id,omitempty"`
	RegionName       string                     `json:"region_name,omitempty"`
	RegionBackground string                     `json:"region_background,omitempty"`
	Region           []mapnav.MinorLocationView `json:"region,omitempty"`
}

// ContextView is the action screen of the selected location.
type ContextView struct {
	LocationID  string       `json:"location_id,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Background  string       `json:"background"`
	Actions     []ActionView `json:"actions"`
	Time        string       `json:"time"`
}

type ActionView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	TimeCost    int    `json:"time_cost"`
}

type InfoView struct {
	Sheet *inventory.Sheet  `json:"sheet,omitempty"`
	Tabs  []string          `json:"tabs"`
	Items []inventory.Entry `json:"items"`
}

// Notification is a transient message for the player.
type Notification struct {
	Level   command.Level `json:"level"`
	Message string        `json:"message"`
	Time    time.Time     `json:"time"`
}
