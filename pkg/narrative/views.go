package narrative

import (
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// CurrentLine returns the line under the cursor.
func (e *Engine) CurrentLine() (content.DialogueLine, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.currentLineLocked()
}

func (e *Engine) currentLineLocked() (content.DialogueLine, bool) {
	if e.scene == nil || e.index >= len(e.scene.Dialogue) {
		return content.DialogueLine{}, false
	}
	return e.scene.Dialogue[e.index], true
}

// SpeakerName is the display name of the current speaker, or "" if unknown.
func (e *Engine) SpeakerName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	line, ok := e.currentLineLocked()
	if !ok {
		return ""
	}
	if c, ok := e.characters[line.Character]; ok {
		return c.Name
	}
	return ""
}

// SpeakerColor is the current speaker's color, or DefaultSpeakerColor.
func (e *Engine) SpeakerColor() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	line, ok := e.currentLineLocked()
	if !ok {
		return DefaultSpeakerColor
	}
	if c, ok := e.characters[line.Character]; ok && c.Color != "" {
		return c.Color
	}
	return DefaultSpeakerColor
}

// ShowChoices is true on the last line of a scene that has choices.
func (e *Engine) ShowChoices() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.showChoicesLocked()
}

// Choices returns the current scene's choices, or nil if none are showing.
func (e *Engine) Choices() []content.Choice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.showChoicesLocked() {
		return nil
	}
	return append([]content.Choice(nil), e.scene.Choices...)
}

// CanRetreat reports whether Retreat would move.
func (e *Engine) CanRetreat() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index > 0 || len(e.history) > 1
}

// Loading is true while a scene is being fetched.
func (e *Engine) Loading() bool {
	return e.loading.Load()
}

func (e *Engine) SceneID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sceneID
}

// Scene returns the current scene. Scenes are never mutated after load.
func (e *Engine) Scene() *content.Scene {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scene
}

// Index is the dialogue cursor.
func (e *Engine) Index() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index
}

func (e *Engine) History() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.history...)
}

func (e *Engine) DialogueHistory() []content.DialogueLine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]content.DialogueLine(nil), e.dialogueHistory...)
}

// Vars returns a copy of the game variables.
func (e *Engine) Vars() conditionals.Vars {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vars.Clone()
}

// Character looks up a character definition by id.
func (e *Engine) Character(id string) (content.Character, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.characters[id]
	return c, ok
}
