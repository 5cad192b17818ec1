// Package narrative implements the scene and dialogue state machine: the dialogue
// cursor, the scene history stack, game variables, and the dialogue log.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// DefaultSpeakerColor is used when the speaker has no character definition.
const DefaultSpeakerColor = "#FFFFFF"

// ErrInvalidChoice is returned when no choices are showing or the index is out of range.
var ErrInvalidChoice = errors.New("invalid choice")

// Step reports what a call to Advance did.
type Step int

const (
	// StepLine moved the cursor to the next line of the current scene.
	StepLine Step = iota
	// StepTransition moved to the first line of the next scene.
	StepTransition
	// StepChoices means the cursor is on the last line and choices are showing.
	StepChoices
	// StepDeadEnd means there is nowhere to go.
	StepDeadEnd
	// StepActionContext means the scene handed off to the action context.
	StepActionContext
)

func (s Step) String() string {
	switch s {
	case StepLine:
		return "line"
	case StepTransition:
		return "transition"
	case StepChoices:
		return "choices"
	case StepDeadEnd:
		return "dead_end"
	case StepActionContext:
		return "action_context"
	default:
		return "unknown"
	}
}

// Snapshot is the part of engine state that survives a save.
type Snapshot struct {
	SceneID string
	Vars    conditionals.Vars
	History []string
}

// Engine owns the narrative state of one playthrough.
//
// transition serializes every mutation, including the content load inside a
// scene change, so a second Advance issued mid-load waits for the first.
// mu guards the fields and is only held briefly, so views never block on a load.
type Engine struct {
	transition sync.Mutex
	mu         sync.RWMutex

	repo    content.Repository
	emitter command.Emitter
	logger  *slog.Logger

	characters      map[string]content.Character
	sceneID         string
	scene           *content.Scene
	index           int
	history         []string
	vars            conditionals.Vars
	dialogueHistory []content.DialogueLine

	loading atomic.Bool
}

// New creates an engine. Commands it emits go to emitter.
func New(repo content.Repository, emitter command.Emitter, logger *slog.Logger) *Engine {
	if emitter == nil {
		emitter = command.Discard
	}
	return &Engine{
		repo:       repo,
		emitter:    emitter,
		logger:     logger,
		characters: map[string]content.Character{},
		vars:       conditionals.Vars{},
	}
}

// Start resets the playthrough and loads the opening scene.
func (e *Engine) Start(ctx context.Context, sceneID string) error {
	e.transition.Lock()
	defer e.transition.Unlock()

	chars, err := e.repo.LoadCharacters(ctx)
	if err != nil {
		e.logger.Warn("Failed to load characters", "error", err)
		chars = map[string]content.Character{}
	}

	s, err := e.load(ctx, sceneID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.characters = chars
	e.history = nil
	e.vars = conditionals.Vars{}
	e.dialogueHistory = nil
	e.enter(s, false)
	e.history = append(e.history, s.ID)
	return nil
}

// Advance moves the dialogue forward by one step.
func (e *Engine) Advance(ctx context.Context) (Step, error) {
	e.transition.Lock()
	defer e.transition.Unlock()

	e.mu.Lock()
	if e.scene == nil {
		e.mu.Unlock()
		return StepDeadEnd, nil
	}
	if e.index < e.scene.LastLine() {
		e.index++
		e.dialogueHistory = append(e.dialogueHistory, e.scene.Dialogue[e.index])
		e.mu.Unlock()
		return StepLine, nil
	}
	if e.scene.HasChoices() {
		e.mu.Unlock()
		return StepChoices, nil
	}
	next := e.scene.NextScene
	e.mu.Unlock()

	if next == "" {
		return StepDeadEnd, nil
	}

	target := ParseTarget(next)
	if target.IsActionContext() {
		e.emitter.Emit(command.NavigateTo{Mode: command.ModeContext})
		return StepActionContext, nil
	}
	if err := e.forward(ctx, target.SceneID()); err != nil {
		return StepDeadEnd, err
	}
	return StepTransition, nil
}

// Retreat moves the dialogue back by one line. On the first line of a scene it
// returns to the previous scene in history and lands on its last line.
// It reports whether anything moved.
func (e *Engine) Retreat(ctx context.Context) (bool, error) {
	e.transition.Lock()
	defer e.transition.Unlock()

	e.mu.Lock()
	if e.index > 0 {
		e.index--
		e.mu.Unlock()
		return true, nil
	}
	if len(e.history) < 2 {
		e.mu.Unlock()
		return false, nil
	}
	prev := e.history[len(e.history)-2]
	e.mu.Unlock()

	s, err := e.load(ctx, prev)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = e.history[:len(e.history)-1]
	e.enter(s, true)
	return true, nil
}

// SelectChoice applies the choice at index: its variables are merged and the
// story moves to its target.
func (e *Engine) SelectChoice(ctx context.Context, index int) error {
	e.transition.Lock()
	defer e.transition.Unlock()

	e.mu.Lock()
	if !e.showChoicesLocked() || index < 0 || index >= len(e.scene.Choices) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidChoice, index)
	}
	choice := e.scene.Choices[index]
	e.vars.Merge(choice.SetVars)
	e.mu.Unlock()

	e.logger.Debug("Choice selected", "scene_id", e.SceneID(), "index", index, "next_scene", choice.NextScene)
	return e.changeScene(ctx, ParseTarget(choice.NextScene), false)
}

// ChangeScene moves to target. A forward change pushes the scene onto history and
// starts at its first line; landAtEnd leaves history alone and starts at the last
// line. A scene that cannot be loaded leaves the current scene in place.
func (e *Engine) ChangeScene(ctx context.Context, target SceneTarget, landAtEnd bool) error {
	e.transition.Lock()
	defer e.transition.Unlock()
	return e.changeScene(ctx, target, landAtEnd)
}

func (e *Engine) changeScene(ctx context.Context, target SceneTarget, landAtEnd bool) error {
	if target.IsActionContext() {
		e.emitter.Emit(command.NavigateTo{Mode: command.ModeContext})
		return nil
	}
	if !landAtEnd {
		return e.forward(ctx, target.SceneID())
	}

	s, err := e.load(ctx, target.SceneID())
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enter(s, true)
	return nil
}

// Restore replaces variables and history with a snapshot and resumes at the
// first line of its scene. Nothing changes if the scene cannot be loaded.
func (e *Engine) Restore(ctx context.Context, snap Snapshot) error {
	e.transition.Lock()
	defer e.transition.Unlock()

	s, err := e.load(ctx, snap.SceneID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars = snap.Vars.Clone()
	e.history = append([]string(nil), snap.History...)
	e.enter(s, false)
	if len(e.history) == 0 || e.history[len(e.history)-1] != s.ID {
		e.history = append(e.history, s.ID)
	}
	return nil
}

// Snapshot captures the state a save slot needs.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		SceneID: e.sceneID,
		Vars:    e.vars.Clone(),
		History: append([]string(nil), e.history...),
	}
}

func (e *Engine) forward(ctx context.Context, id string) error {
	s, err := e.load(ctx, id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enter(s, false)
	e.history = append(e.history, s.ID)
	return nil
}

// load fetches a scene with the loading flag raised. Callers hold transition.
func (e *Engine) load(ctx context.Context, id string) (*content.Scene, error) {
	e.loading.Store(true)
	defer e.loading.Store(false)

	s, err := e.repo.LoadScene(ctx, id)
	if err != nil {
		e.logger.Error("Failed to load scene, keeping current scene", "scene_id", id, "current_scene_id", e.SceneID(), "error", err)
		return nil, fmt.Errorf("failed to change scene to %s: %w", id, err)
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

// enter makes s current. The first line is logged even when landing at the end.
// Callers hold mu.
func (e *Engine) enter(s *content.Scene, landAtEnd bool) {
	e.scene = s
	e.sceneID = s.ID
	e.index = 0
	if len(s.Dialogue) > 0 {
		e.dialogueHistory = append(e.dialogueHistory, s.Dialogue[0])
	}
	if landAtEnd && s.LastLine() > 0 {
		e.index = s.LastLine()
	}
}

func (e *Engine) showChoicesLocked() bool {
	return e.scene != nil && e.index == e.scene.LastLine() && e.scene.HasChoices()
}
