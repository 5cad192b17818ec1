package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBroadcaster(t *testing.T) (*Broadcaster, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBroadcaster(client, logger), client
}

func receive(t *testing.T, sub *redis.PubSub) Event {
	t.Helper()
	select {
	case msg := <-sub.Channel():
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_PublishViewUpdated(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()
	id := uuid.New()

	sub := client.Subscribe(ctx, Channel(id))
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	view := state.View{SessionID: id.String(), SceneID: "scene_002", Index: 1}
	require.NoError(t, b.PublishViewUpdated(ctx, id, view))

	ev := receive(t, sub)
	assert.Equal(t, EventTypeSessionViewUpdated, ev.Type)
	assert.Equal(t, id.String(), ev.SessionID)

	var got state.View
	require.NoError(t, json.Unmarshal(ev.Data, &got))
	assert.Equal(t, "scene_002", got.SceneID)
	assert.Equal(t, 1, got.Index)
}

func TestBroadcaster_PublishSessionClosed(t *testing.T) {
	b, client := setupBroadcaster(t)
	ctx := context.Background()
	id := uuid.New()

	sub := client.Subscribe(ctx, Channel(id))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishSessionClosed(ctx, id))
	ev := receive(t, sub)
	assert.Equal(t, EventTypeSessionClosed, ev.Type)
	assert.Empty(t, ev.Data)
}

func TestBroadcaster_PublishWithoutSubscribers(t *testing.T) {
	b, _ := setupBroadcaster(t)
	assert.NoError(t, b.PublishSessionClosed(context.Background(), uuid.New()))
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("4f1c2a9e-0000-4000-8000-000000000001")
	assert.Equal(t, "session-events:4f1c2a9e-0000-4000-8000-000000000001", Channel(id))
}
