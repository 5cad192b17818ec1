// Package mapnav tracks where the player is on the world and regional maps.
package mapnav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// ErrLocked is returned when selecting a location whose unlock condition fails.
var ErrLocked = errors.New("location is locked")

// Mode is the map screen being shown.
type Mode string

const (
	ModeWorld  Mode = "world"
	ModeRegion Mode = "region"
)

// VarSource supplies the game variables unlock conditions are checked against.
type VarSource interface {
	Vars() conditionals.Vars
}

// MajorLocationView is a world map location with its lock state resolved.
type MajorLocationView struct {
	content.MajorLocation
	Unlocked bool `json:"unlocked"`
}

// MinorLocationView is a regional map location with its lock state resolved.
type MinorLocationView struct {
	content.MinorLocation
	Unlocked bool `json:"unlocked"`
}

// Navigator is the world <-> region state machine.
type Navigator struct {
	mu      sync.RWMutex
	repo    content.Repository
	vars    VarSource
	emitter command.Emitter
	logger  *slog.Logger

	world   []content.MajorLocation
	regions map[string]content.RegionalMap
	loaded  bool

	mode    Mode
	majorID string
	minorID string
}

// New creates a navigator showing the world map.
func New(repo content.Repository, vars VarSource, emitter command.Emitter, logger *slog.Logger) *Navigator {
	if emitter == nil {
		emitter = command.Discard
	}
	return &Navigator{
		repo:    repo,
		vars:    vars,
		emitter: emitter,
		logger:  logger,
		regions: map[string]content.RegionalMap{},
		mode:    ModeWorld,
	}
}

// Load reads the world and regional maps. Missing maps are logged and leave the
// navigator with empty topology.
func (n *Navigator) Load(ctx context.Context) error {
	world, err := n.repo.LoadWorldMap(ctx)
	if err != nil {
		n.logger.Error("Failed to load world map", "error", err)
		world = nil
	}
	regions, rerr := n.repo.LoadRegionalMaps(ctx)
	if rerr != nil {
		n.logger.Error("Failed to load regional maps", "error", rerr)
		regions = map[string]content.RegionalMap{}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.world = world
	n.regions = regions
	n.loaded = true

	if err != nil {
		return fmt.Errorf("failed to load maps: %w", err)
	}
	if rerr != nil {
		return fmt.Errorf("failed to load maps: %w", rerr)
	}
	return nil
}

// Loaded reports whether Load has run.
func (n *Navigator) Loaded() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.loaded
}

// SelectMajorLocation opens the regional map of a world location. A location
// with no regional map still switches to region mode; CurrentRegionalMap then
// reports nothing.
func (n *Navigator) SelectMajorLocation(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, loc := range n.world {
		if loc.ID == id && !conditionals.IsUnlocked(loc.UnlockCondition, n.currentVars()) {
			return fmt.Errorf("%w: %s", ErrLocked, loc.Name)
		}
	}

	if _, ok := n.regions[content.RegionKey(id)]; !ok {
		n.logger.Warn("No regional map for location", "location_id", id, "region_id", content.RegionKey(id))
	}
	n.majorID = id
	n.minorID = ""
	n.mode = ModeRegion
	return nil
}

// BackToWorldMap closes the regional map.
func (n *Navigator) BackToWorldMap() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mode = ModeWorld
	n.majorID = ""
}

// SelectMinorLocation records the location and asks the session to open its
// action context.
func (n *Navigator) SelectMinorLocation(id string) error {
	n.mu.Lock()
	if region, ok := n.regions[content.RegionKey(n.majorID)]; ok {
		if loc, found := region.FindLocation(id); found && !conditionals.IsUnlocked(loc.UnlockCondition, n.currentVars()) {
			n.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrLocked, loc.Name)
		}
	}
	n.minorID = id
	n.mu.Unlock()

	n.emitter.Emit(command.NavigateTo{Mode: command.ModeContext})
	return nil
}

func (n *Navigator) Mode() Mode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.mode
}

func (n *Navigator) CurrentMajorLocationID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.majorID
}

func (n *Navigator) CurrentMinorLocationID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.minorID
}

// CurrentRegionalMap returns the map of the selected major location.
func (n *Navigator) CurrentRegionalMap() (content.RegionalMap, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.majorID == "" {
		return content.RegionalMap{}, false
	}
	m, ok := n.regions[content.RegionKey(n.majorID)]
	return m, ok
}

// WorldLocations lists the world map with lock states.
func (n *Navigator) WorldLocations() []MajorLocationView {
	n.mu.RLock()
	defer n.mu.RUnlock()
	vars := n.currentVars()
	out := make([]MajorLocationView, len(n.world))
	for i, loc := range n.world {
		out[i] = MajorLocationView{MajorLocation: loc, Unlocked: conditionals.IsUnlocked(loc.UnlockCondition, vars)}
	}
	return out
}

// RegionLocations lists the current regional map with lock states.
func (n *Navigator) RegionLocations() []MinorLocationView {
	n.mu.RLock()
	defer n.mu.RUnlock()
	region, ok := n.regions[content.RegionKey(n.majorID)]
	if n.majorID == "" || !ok {
		return nil
	}
	vars := n.currentVars()
	out := make([]MinorLocationView, len(region.Locations))
	for i, loc := range region.Locations {
		out[i] = MinorLocationView{MinorLocation: loc, Unlocked: conditionals.IsUnlocked(loc.UnlockCondition, vars)}
	}
	return out
}

func (n *Navigator) currentVars() conditionals.Vars {
	if n.vars == nil {
		return nil
	}
	return n.vars.Vars()
}
