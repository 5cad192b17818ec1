package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/saves"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Reduce noise in tests
	}))
}

func newRegistry(t *testing.T, store saves.Store) *state.Registry {
	t.Helper()
	if store == nil {
		store = saves.NewMemoryStore()
	}
	repo := content.NewFileRepository(filepath.Join("..", "..", "data"), testLogger())
	r := state.NewRegistry(repo, store, state.Options{}, testLogger())
	t.Cleanup(r.CloseAll)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) state.View {
	t.Helper()
	var v state.View
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler) state.View {
	t.Helper()
	rr := serve(h, http.MethodPost, "/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeView(t, rr)
}

func TestSessionHandler_Create(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())

	rr := serve(h, http.MethodPost, "/v1/sessions", "")
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	v := decodeView(t, rr)
	_, err := uuid.Parse(v.SessionID)
	assert.NoError(t, err)
	assert.Equal(t, "scene_001", v.SceneID)
	assert.Len(t, v.Saves, saves.SlotCount)
}

func TestSessionHandler_CreateWithOptions(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())

	rr := serve(h, http.MethodPost, "/v1/sessions", `{"profile":"alice","start_scene":"scene_003"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, "scene_003", v.SceneID)
	assert.Equal(t, "alice", v.Profile)
}

func TestSessionHandler_CreateErrors(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "bad json", method: http.MethodPost, body: `{"profile":`, status: http.StatusBadRequest},
		{name: "missing scene", method: http.MethodPost, body: `{"start_scene":"scene_404"}`, status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, "/v1/sessions", tt.body)
			assert.Equal(t, tt.status, rr.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSessionHandler_GetAndDelete(t *testing.T) {
	registry := newRegistry(t, nil)
	h := NewSessionHandler(registry, nil, testLogger())
	created := createSession(t, h)
	path := "/v1/sessions/" + created.SessionID

	rr := serve(h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created.SessionID, decodeView(t, rr).SessionID)

	rr = serve(h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 0, registry.Len())

	rr = serve(h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = serve(h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionHandler_BadPaths(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())
	created := createSession(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "bad id", method: http.MethodGet, path: "/v1/sessions/not-a-uuid", status: http.StatusBadRequest},
		{name: "unknown id", method: http.MethodGet, path: "/v1/sessions/" + uuid.NewString(), status: http.StatusNotFound},
		{name: "unknown sub-resource", method: http.MethodGet, path: "/v1/sessions/" + created.SessionID + "/inventory", status: http.StatusNotFound},
		{name: "too deep", method: http.MethodGet, path: "/v1/sessions/" + created.SessionID + "/saves/1", status: http.StatusNotFound},
		{name: "get intents", method: http.MethodGet, path: "/v1/sessions/" + created.SessionID + "/intents", status: http.StatusMethodNotAllowed},
		{name: "patch session", method: http.MethodPatch, path: "/v1/sessions/" + created.SessionID, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, tt.method, tt.path, "")
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestSessionHandler_Intents(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())
	created := createSession(t, h)
	path := "/v1/sessions/" + created.SessionID + "/intents"

	rr := serve(h, http.MethodPost, path, `{"type":"next"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decodeView(t, rr).Index)

	serve(h, http.MethodPost, path, `{"type":"next"}`)
	rr = serve(h, http.MethodPost, path, `{"type":"choose","index":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	v := decodeView(t, rr)
	assert.Equal(t, "scene_003", v.SceneID)
	assert.Equal(t, "mountain", v.Vars["chosen_path"].String())

	rr = serve(h, http.MethodPost, path, `{"type":"set_mode","mode":"map"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	v = decodeView(t, rr)
	assert.Equal(t, command.ModeMap, v.Mode)
	assert.Len(t, v.Map.World, 3)

	rr = serve(h, http.MethodPost, path, `{"type":"perform_action","action_id":"dance"}`)
	require.Equal(t, http.StatusOK, rr.Code, "soft failures are not HTTP errors")
	v = decodeView(t, rr)
	assert.Equal(t, "Action 'dance' not found.", v.Notifications[len(v.Notifications)-1].Message)
}

func TestSessionHandler_IntentErrors(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())
	created := createSession(t, h)
	path := "/v1/sessions/" + created.SessionID + "/intents"

	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{"type":`},
		{name: "unknown type", body: `{"type":"fly"}`},
		{name: "missing field", body: `{"type":"choose"}`},
		{name: "bad mode", body: `{"type":"set_mode","mode":"battle"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(h, http.MethodPost, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestSessionHandler_Saves(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())
	created := createSession(t, h)
	base := "/v1/sessions/" + created.SessionID

	rr := serve(h, http.MethodPost, base+"/intents", `{"type":"save","slot":0,"thumbnail":"t"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, base+"/saves", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var summaries []saves.Summary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summaries))
	require.Len(t, summaries, saves.SlotCount)
	assert.False(t, summaries[0].Empty)
	assert.Equal(t, "scene_001", summaries[0].SceneID)
	assert.Equal(t, "t", summaries[0].Thumbnail)
	assert.True(t, summaries[1].Empty)
}

func TestSessionHandler_SavesFromOtherSession(t *testing.T) {
	h := NewSessionHandler(newRegistry(t, nil), nil, testLogger())
	a := createSession(t, h)
	b := createSession(t, h)

	rr := serve(h, http.MethodPost, "/v1/sessions/"+a.SessionID+"/intents", `{"type":"save","slot":0}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h, http.MethodGet, "/v1/sessions/"+b.SessionID+"/saves", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var summaries []saves.Summary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summaries))
	assert.False(t, summaries[0].Empty)

	rr = serve(h, http.MethodGet, "/v1/sessions/"+b.SessionID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeView(t, rr).Saves[0].Empty)
}

type downStore struct{ *saves.MemoryStore }

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		store          saves.Store
		expectedStatus int
		expectedHealth string
		expectedStore  string
	}{
		{
			name:           "healthy",
			store:          saves.NewMemoryStore(),
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
			expectedStore:  "healthy",
		},
		{
			name:           "store down",
			store:          downStore{saves.NewMemoryStore()},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "degraded",
			expectedStore:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, newRegistry(t, nil), testLogger())
			rr := serve(h, http.MethodGet, "/health", "")

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var resp HealthResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, "novel-engine", resp.Service)
			assert.Equal(t, tt.expectedStore, resp.Components["store"])
			assert.Equal(t, float64(0), resp.Components["sessions"])
		})
	}
}
