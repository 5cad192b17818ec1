package content

import "github.com/jwebster45206/novel-engine/pkg/conditionals"

// NarratorID is the speaker id used for narration lines.
const NarratorID = "narrator"

// ActionMenuSceneID is the scene id content uses to leave the novel and open the
// action context of the current location.
const ActionMenuSceneID = "action_menu"

// Position is where a character sprite stands on screen.
type Position string

const (
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
	PositionCenter Position = "center"
)

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	switch p {
	case PositionLeft, PositionRight, PositionCenter:
		return true
	}
	return false
}

// CharacterSprite places a character on screen for a scene.
type CharacterSprite struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Sprite   string   `json:"sprite"` // key into Character.Sprites
}

// DialogueLine is one line of dialogue. Character is a character id or NarratorID.
type DialogueLine struct {
	Character string `json:"character"`
	Text      string `json:"text"`
}

// Choice is a branch offered at the last line of a scene.
type Choice struct {
	Text      string            `json:"text"`
	NextScene string            `json:"nextScene"`
	SetVars   conditionals.Vars `json:"set_vars,omitempty"`
}

// Scene is one screen of the novel: background, sprites, dialogue, and branches.
// A scene without choices follows NextScene after its last line.
type Scene struct {
	ID         string            `json:"id"`
	Background string            `json:"background"`
	Characters []CharacterSprite `json:"characters"`
	Dialogue   []DialogueLine    `json:"dialogue"`
	Choices    []Choice          `json:"choices"`
	NextScene  string            `json:"nextScene,omitempty"`
}

// LastLine is the index of the final dialogue line, or -1 when there is none.
func (s *Scene) LastLine() int {
	return len(s.Dialogue) - 1
}

// HasChoices reports whether the scene branches.
func (s *Scene) HasChoices() bool {
	return len(s.Choices) > 0
}

// Character describes a speaker.
type Character struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Color   string            `json:"color"`
	Sprites map[string]string `json:"sprites"`
}

// StatDef describes one stat in a stats preset.
type StatDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// PlayerStats is the player's starting character sheet.
type PlayerStats struct {
	Level         int            `json:"level"`
	XP            int            `json:"xp"`
	XPToNextLevel int            `json:"xp_to_next_level"`
	Stats         map[string]int `json:"stats"`
	ClassName     string         `json:"class_name"`
	Race          string         `json:"race"`
}

// Item is a catalog entry for anything that can sit in the inventory.
type Item struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	ItemType    string         `json:"item_type"`
	Stackable   bool           `json:"stackable"`
	MaxStack    int            `json:"max_stack"`
	Properties  map[string]any `json:"properties"`
	Effects     map[string]any `json:"effects"`
}

// MajorLocation is a point of interest on the world map.
type MajorLocation struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	UnlockCondition string `json:"unlock_condition"`
}

// MinorLocation is a point of interest inside a regional map.
type MinorLocation struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	Description      string   `json:"description"`
	AvailableActions []string `json:"available_actions"`
	UnlockCondition  string   `json:"unlock_condition"`
}

// RegionalMap is the map shown after selecting a major location.
type RegionalMap struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	MajorLocationID string          `json:"major_location_id"`
	Background      string          `json:"background"`
	Locations       []MinorLocation `json:"locations"`
}

// FindLocation returns the minor location with the given id.
func (m *RegionalMap) FindLocation(id string) (MinorLocation, bool) {
	for _, loc := range m.Locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return MinorLocation{}, false
}

// RegionKey is the key a regional map is stored under for a major location.
func RegionKey(majorLocationID string) string {
	return "region_" + majorLocationID
}

// Action is a catalog entry for something the player can do at a location.
type Action struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	TimeCost    int    `json:"time_cost"` // hours
}
