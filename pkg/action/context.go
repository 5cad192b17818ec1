// Package action runs the per-location action menu and the in-game clock.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	UnknownLocationName = "Unknown Location"
	PlaceholderImage    = "/placeholder.svg"
)

// ErrUnknownAction is returned for action ids missing from the catalog.
var ErrUnknownAction = errors.New("unknown action")

// Selection is the map state the action context reads when it is entered.
type Selection interface {
	CurrentMinorLocationID() string
	CurrentRegionalMap() (content.RegionalMap, bool)
}

// Context is the action menu for the selected map location.
// The selection is read once in Enter; later map changes do not affect it.
type Context struct {
	mu        sync.RWMutex
	repo      content.Repository
	selection Selection
	emitter   command.Emitter
	logger    *slog.Logger

	catalog    map[string]content.Action
	location   *content.MinorLocation
	background string
	clock      Clock
}

// New creates an action context with the clock at its starting time.
func New(repo content.Repository, selection Selection, emitter command.Emitter, logger *slog.Logger) *Context {
	if emitter == nil {
		emitter = command.Discard
	}
	return &Context{
		repo:       repo,
		selection:  selection,
		emitter:    emitter,
		logger:     logger,
		catalog:    map[string]content.Action{},
		background: PlaceholderImage,
		clock:      NewClock(),
	}
}

// Enter resolves the selected location and loads the action catalog. A location
// that cannot be resolved leaves the views on their placeholders.
func (c *Context) Enter(ctx context.Context) error {
	catalog, err := c.repo.LoadActions(ctx)
	if err != nil {
		c.logger.Error("Failed to load actions", "error", err)
		catalog = map[string]content.Action{}
	}

	locationID := c.selection.CurrentMinorLocationID()
	region, hasRegion := c.selection.CurrentRegionalMap()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = catalog
	c.location = nil
	c.background = PlaceholderImage

	if hasRegion {
		if region.Background != "" {
			c.background = region.Background
		}
		if loc, ok := region.FindLocation(locationID); ok {
			c.location = &loc
		}
	}
	if c.location == nil {
		c.logger.Warn("Action context entered without a known location", "location_id", locationID, "region_id", region.ID)
	}

	if err != nil {
		return fmt.Errorf("failed to enter action context: %w", err)
	}
	return nil
}

// LocationID is the id of the resolved location, or "".
func (c *Context) LocationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.location == nil {
		return ""
	}
	return c.location.ID
}

func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.location == nil {
		return UnknownLocationName
	}
	return c.location.Name
}

func (c *Context) Description() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.location == nil {
		return ""
	}
	return c.location.Description
}

func (c *Context) Background() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.background
}

// AvailableActions resolves the location's action ids against the catalog, in
// the location's order. Ids missing from the catalog are skipped.
func (c *Context) AvailableActions() []content.Action {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.location == nil {
		return nil
	}
	var out []content.Action
	for _, id := range c.location.AvailableActions {
		a, ok := c.catalog[id]
		if !ok {
			c.logger.Debug("Location lists unknown action", "location_id", c.location.ID, "action_id", id)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Clock returns the current in-game time.
func (c *Context) Clock() Clock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clock
}

// SetClock replaces the in-game time.
func (c *Context) SetClock(clock Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// PerformAction spends the action's time cost and applies its effect.
func (c *Context) PerformAction(ctx context.Context, id string) error {
	c.mu.Lock()
	a, ok := c.catalog[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	c.clock.Advance(a.TimeCost)
	now := c.clock
	c.mu.Unlock()

	c.logger.Debug("Action performed", "action_id", id, "time_cost", a.TimeCost, "time", now.String())

	switch id {
	case "explore":
		c.notify("You explore the area and find nothing of interest.")
	case "gather":
		c.notify("You gather some common herbs.")
	case "travel":
		c.emitter.Emit(command.NavigateTo{Mode: command.ModeMap})
	case "train":
		c.notify("You spend some time training.")
	case "craft":
		c.notify("You don't have the required materials to craft anything.")
	case "rest":
		c.notify(fmt.Sprintf("You rest for %d hours.", a.TimeCost))
	default:
		c.notify("Performed action: " + DisplayName(a))
	}
	return nil
}

func (c *Context) notify(msg string) {
	c.emitter.Emit(command.Notify{Level: command.LevelInfo, Message: msg})
}

// DisplayName is the action's name, or a title-cased form of its id.
func DisplayName(a content.Action) string {
	if a.Name != "" {
		return a.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(a.ID, "_", " "))
}
