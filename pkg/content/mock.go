package content

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MockRepository is an in-memory Repository for testing
type MockRepository struct {
	mu         sync.RWMutex
	scenes     map[string]*Scene
	characters map[string]Character
	stats      map[string][]StatDef
	player     *PlayerStats
	items      map[string]Item
	worldMap   []MajorLocation
	regions    map[string]RegionalMap
	actions    map[string]Action
	sceneLoads int
	sceneHook  func(id string)
}

// Ensure MockRepository implements Repository interface
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates an empty mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		scenes:     make(map[string]*Scene),
		characters: make(map[string]Character),
		stats:      make(map[string][]StatDef),
		items:      make(map[string]Item),
		regions:    make(map[string]RegionalMap),
		actions:    make(map[string]Action),
	}
}

// AddScene adds a scene (for testing)
func (m *MockRepository) AddScene(s *Scene) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenes[s.ID] = s
}

// AddCharacter adds a character (for testing)
func (m *MockRepository) AddCharacter(c Character) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[c.ID] = c
}

// SetStatsConfig sets a stats preset (for testing)
func (m *MockRepository) SetStatsConfig(preset string, defs []StatDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[preset] = defs
}

// SetPlayerStats sets the player sheet (for testing)
func (m *MockRepository) SetPlayerStats(ps *PlayerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.player = ps
}

// AddItem adds an item (for testing)
func (m *MockRepository) AddItem(it Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
}

// SetWorldMap sets the world map (for testing)
func (m *MockRepository) SetWorldMap(locs []MajorLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worldMap = locs
}

// AddRegionalMap adds a regional map (for testing)
func (m *MockRepository) AddRegionalMap(r RegionalMap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regions[r.ID] = r
}

// AddAction adds an action to the catalog (for testing)
func (m *MockRepository) AddAction(a Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[a.ID] = a
}

// OnSceneLoad registers a hook called at the start of every LoadScene (for testing)
func (m *MockRepository) OnSceneLoad(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sceneHook = fn
}

// SceneLoads returns how many times LoadScene was called
func (m *MockRepository) SceneLoads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sceneLoads
}

func (m *MockRepository) LoadScene(ctx context.Context, id string) (*Scene, error) {
	m.mu.Lock()
	m.sceneLoads++
	hook := m.sceneHook
	s, exists := m.scenes[id]
	m.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if !exists {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	if err := ValidateScene(s); err != nil {
		return nil, fmt.Errorf("scene %s: %w: %v", id, ErrInvalidScene, err)
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) LoadCharacters(ctx context.Context) (map[string]Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.characters), nil
}

func (m *MockRepository) LoadStatsConfig(ctx context.Context, preset string) ([]StatDef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs, ok := m.stats[preset]
	if !ok {
		return nil, fmt.Errorf("stats preset %s: %w", preset, ErrNotFound)
	}
	return defs, nil
}

func (m *MockRepository) LoadPlayerStats(ctx context.Context) (*PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.player == nil {
		return nil, fmt.Errorf("player stats: %w", ErrNotFound)
	}
	ps := *m.player
	return &ps, nil
}

func (m *MockRepository) LoadItems(ctx context.Context) (map[string]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.items), nil
}

func (m *MockRepository) LoadWorldMap(ctx context.Context) ([]MajorLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.worldMap == nil {
		return nil, fmt.Errorf("world map: %w", ErrNotFound)
	}
	return append([]MajorLocation(nil), m.worldMap...), nil
}

func (m *MockRepository) LoadRegionalMaps(ctx context.Context) (map[string]RegionalMap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.regions), nil
}

func (m *MockRepository) LoadActions(ctx context.Context) (map[string]Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.actions), nil
}
