package saves

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/narrative"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRepo() *content.MockRepository {
	repo := content.NewMockRepository()
	line := func(text string) []content.DialogueLine {
		return []content.DialogueLine{{Character: "narrator", Text: text}, {Character: "narrator", Text: text + " (cont.)"}}
	}
	repo.AddScene(&content.Scene{ID: "scene_001", Dialogue: line("start"), NextScene: "scene_002"})
	repo.AddScene(&content.Scene{ID: "scene_002", Dialogue: line("middle"), NextScene: "scene_004"})
	repo.AddScene(&content.Scene{ID: "scene_004", Dialogue: line("end"), NextScene: content.ActionMenuSceneID})
	return repo
}

func storyAt(t *testing.T, sceneID string, vars conditionals.Vars, history []string) *narrative.Engine {
	t.Helper()
	e := narrative.New(testRepo(), nil, testLogger())
	require.NoError(t, e.Restore(context.Background(), narrative.Snapshot{SceneID: sceneID, Vars: vars, History: history}))
	return e
}

func fixedClock(m *Manager) {
	m.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }
}

func TestManager_FirstReadCreatesEmptySlots(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "", testLogger())
	ctx := context.Background()

	slots, err := m.Slots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, SlotCount)
	for _, s := range slots {
		assert.Nil(t, s)
	}

	blob, ok, err := store.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "["+strings.TrimSuffix(strings.Repeat("null,", SlotCount), ",")+"]", blob)
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", testLogger())
	fixedClock(m)
	ctx := context.Background()

	vars := conditionals.Vars{
		"ally":    conditionals.String("elara"),
		"gold":    conditionals.Int(40),
		"met_kai": conditionals.Bool(false),
		"karma":   conditionals.Float(0.75),
	}
	story := storyAt(t, "scene_002", vars, []string{"scene_001", "scene_002"})
	_, err := story.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, story.Index())

	saved, err := m.Save(ctx, story, 4, "data:image/png;base64,AAA")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14 09:26:53", saved.Timestamp)
	assert.Equal(t, 4, saved.SlotID)

	// Move on, then load back.
	_, err = story.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, "scene_004", story.SceneID())

	loaded, err := m.Load(ctx, story, 4)
	require.NoError(t, err)
	assert.Equal(t, "scene_002", loaded.SceneID)

	assert.Equal(t, vars, story.Vars())
	assert.Equal(t, []string{"scene_001", "scene_002"}, story.History())
	assert.Equal(t, "scene_002", story.SceneID())
	assert.Equal(t, 0, story.Index(), "dialogue index is not restored")
}

func TestManager_SaveGrowsAndOverwrites(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "", testLogger())
	ctx := context.Background()
	story := storyAt(t, "scene_001", nil, nil)

	_, err := m.Save(ctx, story, 20, "")
	require.NoError(t, err)
	slots, err := m.Slots(ctx)
	require.NoError(t, err)
	assert.Len(t, slots, 21)
	assert.NotNil(t, slots[20])

	require.NoError(t, story.ChangeScene(ctx, narrative.Scene("scene_004"), false))
	_, err = m.Save(ctx, story, 20, "thumb")
	require.NoError(t, err)
	slots, err = m.Slots(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scene_004", slots[20].SceneID)
	assert.Equal(t, "thumb", slots[20].Thumbnail)

	_, err = m.Save(ctx, story, -1, "")
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = m.Save(ctx, story, MaxSlots, "")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestManager_LoadEmptySlot(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", testLogger())
	ctx := context.Background()
	story := storyAt(t, "scene_001", nil, nil)

	for _, slot := range []int{0, 14, 15, -1, 500} {
		_, err := m.Load(ctx, story, slot)
		assert.ErrorIs(t, err, ErrEmptySlot, "slot %d", slot)
	}
	assert.Equal(t, "scene_001", story.SceneID())
}

// Saving to slot 3 and then corrupting the blob leaves every slot empty.
func TestManager_CorruptBlobRecovers(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "", testLogger())
	ctx := context.Background()

	story := storyAt(t, "scene_004", conditionals.Vars{"ally": conditionals.String("elara")}, []string{"scene_001", "scene_002", "scene_004"})
	_, err := m.Save(ctx, story, 3, "")
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, Key, `[{"slot_id": 3, "scene_id": "scene_0`))

	var loadErr error
	assert.NotPanics(t, func() {
		_, loadErr = m.Load(ctx, story, 3)
	})
	assert.ErrorIs(t, loadErr, ErrEmptySlot)

	blob, ok, err := store.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok)
	slots, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, Empty(), slots, "store rewritten with empty slots")

	_, err = m.Load(ctx, story, 3)
	assert.ErrorIs(t, err, ErrEmptySlot)
}

func TestManager_WriteFailure(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "", testLogger())
	ctx := context.Background()
	story := storyAt(t, "scene_001", nil, nil)

	_, err := m.Slots(ctx)
	require.NoError(t, err)

	store.FailWrites(errors.New("disk full"))
	_, err = m.Save(ctx, story, 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	store.FailWrites(nil)
	_, err = m.Load(ctx, story, 0)
	assert.ErrorIs(t, err, ErrEmptySlot, "failed save left nothing behind")
}

func TestManager_LoadMissingScene(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "", testLogger())
	ctx := context.Background()
	story := storyAt(t, "scene_001", nil, nil)

	require.NoError(t, store.Set(ctx, Key, `[{"slot_id":0,"scene_id":"deleted_scene","timestamp":"","game_vars":{"x":1},"history":["deleted_scene"],"thumbnail":""}]`))

	_, err := m.Load(ctx, story, 0)
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.Equal(t, "scene_001", story.SceneID())
	assert.Empty(t, story.Vars(), "failed load leaves state alone")
}

func TestManager_ProfilesAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	alice := NewManager(store, "alice", testLogger())
	bob := NewManager(store, "bob", testLogger())
	ctx := context.Background()
	story := storyAt(t, "scene_001", nil, nil)

	assert.Equal(t, "save_slots:alice", alice.StoreKey())

	_, err := alice.Save(ctx, story, 0, "")
	require.NoError(t, err)

	_, err = bob.Load(ctx, story, 0)
	assert.ErrorIs(t, err, ErrEmptySlot)
	_, err = alice.Load(ctx, story, 0)
	assert.NoError(t, err)
}

func TestManager_Summaries(t *testing.T) {
	m := NewManager(NewMemoryStore(), "", testLogger())
	fixedClock(m)
	ctx := context.Background()
	story := storyAt(t, "scene_002", nil, nil)

	_, err := m.Save(ctx, story, 1, "thumb")
	require.NoError(t, err)

	sums, err := m.Summaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, SlotCount)
	assert.Equal(t, Summary{Slot: 1, Empty: true}, sums[0])
	assert.Equal(t, Summary{Slot: 2, SceneID: "scene_002", Timestamp: "2026-03-14 09:26:53", Thumbnail: "thumb"}, sums[1])
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		blob    string
		wantLen int
		wantErr bool
	}{
		{name: "empty slots", blob: `[null,null,null]`, wantLen: 3},
		{name: "one slot", blob: `[{"slot_id":0,"scene_id":"a","game_vars":{"n":2.5}}]`, wantLen: 1},
		{name: "garbage", blob: `not json`, wantErr: true},
		{name: "null", blob: `null`, wantErr: true},
		{name: "object", blob: `{"slot_id":0}`, wantErr: true},
		{name: "nested var", blob: `[{"game_vars":{"bad":{"x":1}}}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := Decode(tt.blob)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, slots, tt.wantLen)
		})
	}
}
