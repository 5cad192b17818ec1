// Package saves persists save slots as a single JSON array in a key-value store.
package saves

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/narrative"
)

// Key is the store key holding the slot array.
const Key = "save_slots"

var (
	// ErrEmptySlot is returned when loading a slot that is out of range or empty.
	ErrEmptySlot = errors.New("empty or invalid save slot")

	// ErrInvalidSlot is returned when saving to an index outside [0, MaxSlots).
	ErrInvalidSlot = errors.New("invalid save slot")
)

// Story is the part of the narrative engine a save captures and a load restores.
type Story interface {
	Snapshot() narrative.Snapshot
	Restore(ctx context.Context, snap narrative.Snapshot) error
}

// Manager reads and writes save slots. All store access goes through one mutex
// so the store sees a single writer.
type Manager struct {
	mu     sync.Mutex
	store  Store
	key    string
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a manager. A non-empty profile namespaces the store key as
// save_slots:<profile>.
func NewManager(store Store, profile string, logger *slog.Logger) *Manager {
	key := Key
	if profile != "" {
		key = Key + ":" + profile
	}
	return &Manager{
		store:  store,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// StoreKey returns the key the slot array is kept under.
func (m *Manager) StoreKey() string {
	return m.key
}

// Save writes the story's current state to slot and returns the new slot.
func (m *Manager) Save(ctx context.Context, story Story, slot int, thumbnail string) (*Slot, error) {
	if slot < 0 || slot >= MaxSlots {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	snap := story.Snapshot()
	saved := &Slot{
		SlotID:    slot,
		SceneID:   snap.SceneID,
		Timestamp: m.now().Format(TimestampLayout),
		GameVars:  snap.Vars,
		History:   snap.History,
		Thumbnail: thumbnail,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	slots, err := m.readLocked(ctx)
	if err != nil {
		return nil, err
	}
	slots = slots.Put(slot, saved)
	if err := m.writeLocked(ctx, slots); err != nil {
		return nil, err
	}

	m.logger.Info("Game saved", "slot", slot, "scene_id", saved.SceneID, "key", m.key)
	return saved, nil
}

// Load restores the story from slot. The story resumes at the first line of the
// saved scene.
func (m *Manager) Load(ctx context.Context, story Story, slot int) (*Slot, error) {
	m.mu.Lock()
	slots, err := m.readLocked(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	saved := slots.Get(slot)
	if saved == nil {
		return nil, fmt.Errorf("%w: %d", ErrEmptySlot, slot)
	}

	snap := narrative.Snapshot{
		SceneID: saved.SceneID,
		Vars:    saved.GameVars,
		History: saved.History,
	}
	if err := story.Restore(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to load slot %d: %w", slot, err)
	}

	m.logger.Info("Game loaded", "slot", slot, "scene_id", saved.SceneID)
	return saved, nil
}

// Slots returns the current slot array.
func (m *Manager) Slots(ctx context.Context) (Slots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readLocked(ctx)
}

// Summaries lists every slot for a load menu.
func (m *Manager) Summaries(ctx context.Context) ([]Summary, error) {
	slots, err := m.Slots(ctx)
	if err != nil {
		return nil, err
	}
	return slots.Summarize(), nil
}

// readLocked fetches the slot array. A missing key starts a new store with
// SlotCount empty slots; a corrupt blob is replaced by one.
func (m *Manager) readLocked(ctx context.Context) (Slots, error) {
	blob, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read save slots: %w", err)
	}
	if !ok {
		slots := Empty()
		if err := m.writeLocked(ctx, slots); err != nil {
			m.logger.Warn("Failed to initialize save slots", "key", m.key, "error", err)
		}
		return slots, nil
	}

	slots, err := Decode(blob)
	if err != nil {
		m.logger.Warn("Save slots are corrupt, resetting", "key", m.key, "error", err)
		slots = Empty()
		if err := m.writeLocked(ctx, slots); err != nil {
			m.logger.Warn("Failed to reset save slots", "key", m.key, "error", err)
		}
	}
	return slots, nil
}

func (m *Manager) writeLocked(ctx context.Context, slots Slots) error {
	blob, err := Encode(slots)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.key, blob); err != nil {
		m.logger.Error("Failed to write save slots", "key", m.key, "error", err)
		return fmt.Errorf("failed to write save slots: %w", err)
	}
	return nil
}
