package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/narrative"
	"github.com/jwebster45206/novel-engine/pkg/saves"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func setupTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "saves.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// stores runs fn against every persistent backend.
func stores(t *testing.T, fn func(t *testing.T, store saves.Store)) {
	t.Run("redis", func(t *testing.T) {
		store, _ := setupTestRedis(t)
		fn(t, store)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, setupTestSQLite(t))
	})
}

func TestStore_GetSet(t *testing.T) {
	stores(t, func(t *testing.T, store saves.Store) {
		ctx := context.Background()
		require.NoError(t, store.Ping(ctx))

		_, ok, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, "save_slots", `[null]`))
		got, ok, err := store.Get(ctx, "save_slots")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `[null]`, got)

		require.NoError(t, store.Set(ctx, "save_slots", `[]`))
		got, _, err = store.Get(ctx, "save_slots")
		require.NoError(t, err)
		assert.Equal(t, `[]`, got)
	})
}

// story is a stand-in for the narrative engine.
type story struct {
	snap narrative.Snapshot
}

func (s *story) Snapshot() narrative.Snapshot { return s.snap }
func (s *story) Restore(ctx context.Context, snap narrative.Snapshot) error {
	s.snap = snap
	return nil
}

func TestStore_SaveManagerRoundTrip(t *testing.T) {
	stores(t, func(t *testing.T, store saves.Store) {
		ctx := context.Background()
		m := saves.NewManager(store, "", testLogger())

		src := &story{snap: narrative.Snapshot{
			SceneID: "scene_004",
			Vars:    conditionals.Vars{"ally": conditionals.String("elara"), "gold": conditionals.Int(3)},
			History: []string{"scene_001", "scene_002", "scene_004"},
		}}
		_, err := m.Save(ctx, src, 1, "thumb")
		require.NoError(t, err)

		blob, ok, err := store.Get(ctx, saves.Key)
		require.NoError(t, err)
		require.True(t, ok)
		slots, err := saves.Decode(blob)
		require.NoError(t, err)
		assert.Len(t, slots, saves.SlotCount)

		dst := &story{}
		_, err = m.Load(ctx, dst, 1)
		require.NoError(t, err)
		assert.Equal(t, src.snap, dst.snap)
	})
}

func TestStore_CorruptBlobRecovery(t *testing.T) {
	stores(t, func(t *testing.T, store saves.Store) {
		ctx := context.Background()
		require.NoError(t, store.Set(ctx, saves.Key, "{not json"))

		m := saves.NewManager(store, "", testLogger())
		_, err := m.Load(ctx, &story{}, 0)
		assert.ErrorIs(t, err, saves.ErrEmptySlot)

		blob, _, err := store.Get(ctx, saves.Key)
		require.NoError(t, err)
		slots, err := saves.Decode(blob)
		require.NoError(t, err)
		assert.Len(t, slots, saves.SlotCount)
	})
}

func TestRedisStore_NoExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, store.Set(context.Background(), "save_slots", "[]"))
	assert.Equal(t, time.Duration(0), mr.TTL("save_slots"))
}

func TestRedisStore_PingFailsWhenDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRedisStore_HostPortAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(mr.Addr(), testLogger())
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, store.Ping(context.Background()))
}

func TestSQLiteStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves.db")
	ctx := context.Background()

	first, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", "v"))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path, testLogger())
	require.NoError(t, err)
	defer second.Close()
	got, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ", testLogger())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "memory", opts: Options{Backend: BackendMemory}},
		{name: "default is memory", opts: Options{}},
		{name: "redis", opts: Options{Backend: BackendRedis, RedisURL: mr.Addr()}},
		{name: "redis unreachable", opts: Options{Backend: BackendRedis, RedisURL: "127.0.0.1:1", ConnectRetries: 1, RetryDelay: time.Millisecond}, wantErr: true},
		{name: "sqlite", opts: Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}},
		{name: "unknown", opts: Options{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.opts, testLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.NoError(t, store.Ping(ctx))
		})
	}
}
