// Package state wires one player's game components into a session that accepts
// intents and publishes views.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/action"
	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/inventory"
	"github.com/jwebster45206/novel-engine/pkg/mapnav"
	"github.com/jwebster45206/novel-engine/pkg/narrative"
	"github.com/jwebster45206/novel-engine/pkg/playback"
	"github.com/jwebster45206/novel-engine/pkg/saves"
)

const (
	DefaultStartScene  = "scene_001"
	DefaultStatsPreset = "fantasy"
	DefaultTextSpeed   = 1.0

	// MaxNotifications is how many recent notifications a view carries.
	MaxNotifications = 20
)

// ErrSessionClosed is returned by Dispatch after Close.
var ErrSessionClosed = errors.New("session closed")

// Options configure a new session. Zero values take the package defaults.
type Options struct {
	Profile       string
	StartScene    string
	StatsPreset   string
	AutoPlaySpeed float64
}

// Session is one player's game. It owns every component and is the only thing
// components report to: they emit commands, and the session applies them after
// the operation that caused them returns.
type Session struct {
	ID        uuid.UUID
	Profile   string
	CreatedAt time.Time

	mu            sync.Mutex
	logger        *slog.Logger
	engine        *narrative.Engine
	scheduler     *playback.Scheduler
	saves         *saves.Manager
	navigator     *mapnav.Navigator
	actions       *action.Context
	info          *inventory.Projection
	mode          command.Mode
	textSpeed     float64
	notifications []Notification
	summaries     []saves.Summary
	observers     []func(View)
	closed        bool

	// pending is guarded by its own mutex so components can emit while the
	// session lock is held by the dispatch that called them.
	pendingMu sync.Mutex
	pending   []command.Command
}

// NewSession builds a session and starts the story at the configured scene.
func NewSession(ctx context.Context, repo content.Repository, store saves.Store, opts Options, logger *slog.Logger) (*Session, error) {
	if opts.StartScene == "" {
		opts.StartScene = DefaultStartScene
	}
	if opts.StatsPreset == "" {
		opts.StatsPreset = DefaultStatsPreset
	}

	id := uuid.New()
	logger = logger.With("session_id", id.String())

	s := &Session{
		ID:        id,
		Profile:   opts.Profile,
		CreatedAt: time.Now(),
		logger:    logger,
		mode:      command.ModeNovel,
		textSpeed: DefaultTextSpeed,
	}
	s.engine = narrative.New(repo, s, logger)
	s.scheduler = playback.New(s.engine, logger)
	s.scheduler.OnStep(s.afterStep)
	if opts.AutoPlaySpeed > 0 {
		if err := s.scheduler.SetSpeed(opts.AutoPlaySpeed); err != nil {
			return nil, err
		}
	}
	s.saves = saves.NewManager(store, opts.Profile, logger)
	s.navigator = mapnav.New(repo, s.engine, s, logger)
	s.actions = action.New(repo, s.navigator, s, logger)
	s.info = inventory.Load(ctx, repo, opts.StatsPreset, logger)

	if err := s.engine.Start(ctx, opts.StartScene); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshSavesLocked(ctx)
	s.drainLocked(ctx)

	logger.Info("Session created", "profile", opts.Profile, "start_scene", opts.StartScene)
	return s, nil
}

// Emit queues a command from a component. It never takes the session lock.
func (s *Session) Emit(cmd command.Command) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending = append(s.pending, cmd)
}

// OnChange registers fn to receive the view after every dispatch and every
// timed advance. fn runs without the session lock held.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// View returns the current state. Save slots are re-read from the store, since
// other sessions on the same profile may have written to them.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshSavesLocked(context.Background())
	return s.viewLocked()
}

// Saves reads the profile's save slots from the store.
func (s *Session) Saves(ctx context.Context) ([]saves.Summary, error) {
	summaries, err := s.saves.Summaries(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.summaries = summaries
	s.mu.Unlock()
	return append([]saves.Summary(nil), summaries...), nil
}

// Close stops playback and rejects further intents.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.scheduler.Stop()
	s.mu.Unlock()

	// The loop's step callback takes s.mu.
	s.scheduler.Wait()
	s.logger.Info("Session closed")
}

// Dispatch applies an intent and returns the resulting view. Mistakes the player
// can make (an empty save slot, a locked location, an unknown action) become
// notifications; only malformed intents are returned as errors.
func (s *Session) Dispatch(ctx context.Context, in Intent) (View, error) {
	if err := in.Validate(); err != nil {
		return View{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}, ErrSessionClosed
	}

	s.logger.Debug("Dispatching intent", "type", in.Type)
	s.applyLocked(ctx, in)
	s.drainLocked(ctx)
	s.refreshSavesLocked(ctx)
	view := s.viewLocked()
	observers := append([]func(View){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
	return view, nil
}

func (s *Session) applyLocked(ctx context.Context, in Intent) {
	switch in.Type {
	case IntentNext:
		if _, err := s.engine.Advance(ctx); err != nil {
			s.logger.Warn("Advance failed", "error", err)
		}

	case IntentPrev:
		if _, err := s.engine.Retreat(ctx); err != nil {
			s.logger.Warn("Retreat failed", "error", err)
		}

	case IntentChoose:
		s.scheduler.Stop()
		err := s.engine.SelectChoice(ctx, *in.Index)
		switch {
		case errors.Is(err, narrative.ErrInvalidChoice):
			s.notifyLocked(command.LevelWarning, "Invalid choice.")
		case err != nil:
			s.logger.Warn("Choice failed", "index", *in.Index, "error", err)
		}

	case IntentChangeScene:
		if err := s.engine.ChangeScene(ctx, narrative.ParseTarget(in.SceneID), false); err != nil {
			s.logger.Warn("Scene change failed", "scene_id", in.SceneID, "error", err)
		}

	case IntentSave:
		s.saveLocked(ctx, *in.Slot, in.Thumbnail)

	case IntentLoad:
		s.loadLocked(ctx, *in.Slot)

	case IntentToggleAutoPlay:
		s.scheduler.ToggleAutoPlay()

	case IntentToggleSkip:
		s.scheduler.ToggleSkip()

	case IntentSetTextSpeed:
		s.textSpeed = *in.Speed

	case IntentSetAutoSpeed:
		if err := s.scheduler.SetSpeed(*in.Speed); err != nil {
			s.notifyLocked(command.LevelWarning, sentence(err))
		}

	case IntentSelectMajor:
		s.ensureMapLocked(ctx)
		if err := s.navigator.SelectMajorLocation(in.LocationID); err != nil {
			s.notifyLocked(command.LevelWarning, sentence(err))
		}

	case IntentSelectMinor:
		s.ensureMapLocked(ctx)
		if err := s.navigator.SelectMinorLocation(in.LocationID); err != nil {
			s.notifyLocked(command.LevelWarning, sentence(err))
		}

	case IntentBackToWorld:
		s.navigator.BackToWorldMap()

	case IntentPerformAction:
		err := s.actions.PerformAction(ctx, in.ActionID)
		if errors.Is(err, action.ErrUnknownAction) {
			s.notifyLocked(command.LevelError, fmt.Sprintf("Action '%s' not found.", in.ActionID))
		}

	case IntentSetMode:
		mode, _ := command.ParseMode(in.Mode)
		s.navigateLocked(ctx, mode)
	}
}

func (s *Session) saveLocked(ctx context.Context, slot int, thumbnail string) {
	if _, err := s.saves.Save(ctx, s.engine, slot, thumbnail); err != nil {
		s.logger.Error("Failed to save game", "slot", slot, "error", err)
		if errors.Is(err, saves.ErrInvalidSlot) {
			s.notifyLocked(command.LevelError, "Invalid save slot.")
			return
		}
		s.notifyLocked(command.LevelError, "Failed to save game.")
		return
	}
	s.notifyLocked(command.LevelSuccess, fmt.Sprintf("Game saved to slot %d", slot+1))
}

func (s *Session) loadLocked(ctx context.Context, slot int) {
	s.scheduler.Stop()

	_, err := s.saves.Load(ctx, s.engine, slot)
	switch {
	case errors.Is(err, saves.ErrEmptySlot):
		s.notifyLocked(command.LevelWarning, "Empty or invalid save slot.")
	case err != nil:
		s.logger.Error("Failed to load game", "slot", slot, "error", err)
		s.notifyLocked(command.LevelError, "Failed to load game.")
	default:
		s.notifyLocked(command.LevelInfo, fmt.Sprintf("Loading game from slot %d...", slot+1))
		s.mode = command.ModeNovel
	}
}

func (s *Session) refreshSavesLocked(ctx context.Context) {
	summaries, err := s.saves.Summaries(ctx)
	if err != nil {
		s.logger.Warn("Failed to read save slots", "error", err)
		return
	}
	s.summaries = summaries
}

// afterStep runs on the scheduler goroutine after each timed advance.
func (s *Session) afterStep(narrative.Step) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.drainLocked(context.Background())
	view := s.viewLocked()
	observers := append([]func(View){}, s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
}

// drainLocked applies queued commands until none remain.
func (s *Session) drainLocked(ctx context.Context) {
	for {
		s.pendingMu.Lock()
		cmds := s.pending
		s.pending = nil
		s.pendingMu.Unlock()
		if len(cmds) == 0 {
			return
		}

		for _, cmd := range cmds {
			switch c := cmd.(type) {
			case command.NavigateTo:
				s.navigateLocked(ctx, c.Mode)
			case command.Notify:
				s.notifyLocked(c.Level, c.Message)
			}
		}
	}
}

func (s *Session) navigateLocked(ctx context.Context, mode command.Mode) {
	switch mode {
	case command.ModeMap:
		s.ensureMapLocked(ctx)
	case command.ModeContext:
		if err := s.actions.Enter(ctx); err != nil {
			s.logger.Warn("Action context degraded", "error", err)
		}
	}
	if s.mode != mode {
		s.logger.Debug("Mode changed", "from", s.mode, "to", mode)
	}
	s.mode = mode
}

func (s *Session) ensureMapLocked(ctx context.Context) {
	if s.navigator.Loaded() {
		return
	}
	if err := s.navigator.Load(ctx); err != nil {
		s.logger.Warn("Map degraded", "error", err)
	}
}

func (s *Session) notifyLocked(level command.Level, msg string) {
	s.notifications = append(s.notifications, Notification{Level: level, Message: msg, Time: time.Now()})
	if n := len(s.notifications); n > MaxNotifications {
		s.notifications = append([]Notification(nil), s.notifications[n-MaxNotifications:]...)
	}
}

func (s *Session) viewLocked() View {
	v := View{
		SessionID:     s.ID.String(),
		Profile:       s.Profile,
		Mode:          s.mode,
		Loading:       s.engine.Loading(),
		SceneID:       s.engine.SceneID(),
		Index:         s.engine.Index(),
		ShowChoices:   s.engine.ShowChoices(),
		CanRetreat:    s.engine.CanRetreat(),
		History:       s.engine.History(),
		DialogueLog:   s.engine.DialogueHistory(),
		Vars:          s.engine.Vars(),
		Saves:         append([]saves.Summary(nil), s.summaries...),
		Notifications: append([]Notification(nil), s.notifications...),
		Settings: Settings{
			TextSpeed:     s.textSpeed,
			AutoPlaySpeed: s.scheduler.Speed(),
		},
	}

	mode := s.scheduler.Mode()
	v.Playback = PlaybackView{Mode: mode.String(), AutoPlay: mode == playback.AutoPlay, Skip: mode == playback.Skip}

	if scene := s.engine.Scene(); scene != nil {
		v.Background = scene.Background
		for _, sp := range scene.Characters {
			view := SpriteView{ID: sp.ID, Position: sp.Position}
			if ch, ok := s.engine.Character(sp.ID); ok {
				view.Image = ch.Sprites[sp.Sprite]
			}
			v.Sprites = append(v.Sprites, view)
		}
	}
	if line, ok := s.engine.CurrentLine(); ok {
		v.Line = &LineView{
			Speaker: s.engine.SpeakerName(),
			Color:   s.engine.SpeakerColor(),
			Text:    line.Text,
		}
	}
	if v.ShowChoices {
		v.Choices = s.engine.Choices()
	}

	v.Map = s.mapViewLocked()
	if s.mode == command.ModeContext {
		v.Context = s.contextViewLocked()
	}
	v.Info = InfoView{
		Sheet: s.info.Sheet,
		Tabs:  s.info.Inventory.Tabs(),
		Items: s.info.Inventory.ByTab(inventory.TabAll),
	}
	return v
}

func (s *Session) mapViewLocked() MapView {
	m := MapView{
		Mode:            s.navigator.Mode(),
		MajorLocationID: s.navigator.CurrentMajorLocationID(),
		MinorLocationID: s.navigator.CurrentMinorLocationID(),
		World:           s.navigator.WorldLocations(),
		Region:          s.navigator.RegionLocations(),
	}
	if region, ok := s.navigator.CurrentRegionalMap(); ok {
		m.RegionID = region.ID
		m.RegionName = region.Name
		m.RegionBackground = region.Background
	}
	return m
}

func (s *Session) contextViewLocked() *ContextView {
	c := &ContextView{
		LocationID:  s.actions.LocationID(),
		Name:        s.actions.Name(),
		Description: s.actions.Description(),
		Background:  s.actions.Background(),
		Time:        s.actions.Clock().String(),
		Actions:     []ActionView{},
	}
	for _, a := range s.actions.AvailableActions() {
		c.Actions = append(c.Actions, ActionView{
			ID:          a.ID,
			Name:        action.DisplayName(a),
			Description: a.Description,
			Icon:        a.Icon,
			TimeCost:    a.TimeCost,
		})
	}
	return c
}

// sentence capitalizes an error message for display.
func sentence(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if size == 0 {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
