package runner

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jwebster45206/novel-engine/internal/handlers"
	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/mapnav"
	"github.com/jwebster45206/novel-engine/pkg/saves"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := content.NewFileRepository(filepath.Join("..", "..", "data"), testLogger())
	registry := state.NewRegistry(repo, saves.NewMemoryStore(), state.Options{}, testLogger())
	t.Cleanup(registry.CloseAll)

	sessions := handlers.NewSessionHandler(registry, nil, testLogger())
	mux := http.NewServeMux()
	mux.Handle("/v1/sessions", sessions)
	mux.Handle("/v1/sessions/", sessions)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSuite_Cases(t *testing.T) {
	srv := newServer(t)

	files, err := filepath.Glob(filepath.Join("..", "cases", "*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		jobs, err := LoadTestSuiteWithExpansion(file, filepath.Join("..", "cases"))
		require.NoError(t, err)

		for _, job := range jobs {
			t.Run(job.Name, func(t *testing.T) {
				r := NewRunner(srv.URL + "/")
				r.Timeout = 10 * time.Second
				r.Logger = t.Logf

				result, err := r.RunSuite(context.Background(), job.Suite)
				require.NoError(t, err)
				assert.NotEmpty(t, result.SessionID)
				assert.NotEmpty(t, result.ScenePath())
				for _, step := range result.Results {
					assert.True(t, step.Success, "%s: %v", step.StepName, step.Error)
				}
				_, failed := result.Counts()
				assert.Zero(t, failed)
			})
		}
	}
}

func TestRunSuite_Failures(t *testing.T) {
	srv := newServer(t)
	wrongScene := "scene_009"
	one := 1

	suite := TestSuite{
		Name: "failing",
		Steps: []TestStep{
			{Name: "wrong scene", Expectations: Expectations{SceneID: &wrongScene}},
			{Name: "advance", Intent: &state.Intent{Type: state.IntentNext}, Expectations: Expectations{Index: &one}},
			{Name: "wrong status", Intent: &state.Intent{Type: state.IntentNext}, ExpectStatus: http.StatusBadRequest},
		},
	}

	t.Run("continue", func(t *testing.T) {
		r := NewRunner(srv.URL)
		result, err := r.RunSuite(context.Background(), suite)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "step 0 (wrong scene) failed")
		require.Len(t, result.Results, 3)
		assert.False(t, result.Results[0].Success)
		assert.True(t, result.Results[1].Success)
		assert.False(t, result.Results[2].Success)
		assert.Contains(t, result.Results[2].Error.Error(), "expected status 400")
	})

	t.Run("exit", func(t *testing.T) {
		r := NewRunner(srv.URL)
		r.ErrorHandlingMode = ErrorHandlingExit
		result, err := r.RunSuite(context.Background(), suite)
		require.Error(t, err)
		assert.Len(t, result.Results, 1)
	})

	t.Run("bad start scene", func(t *testing.T) {
		r := NewRunner(srv.URL)
		r.StartSceneOverride = "scene_404"
		_, err := r.RunSuite(context.Background(), suite)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create session")
	})
}

func TestRunSuite_RecordsScenes(t *testing.T) {
	srv := newServer(t)
	suite, err := LoadTestSuite(filepath.Join("..", "cases", "save_load.json"))
	require.NoError(t, err)

	r := NewRunner(srv.URL)
	result, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, []string{"scene_001", "scene_002", "scene_005", "scene_002", "scene_001", "scene_002"}, result.ScenePath())
	passed, failed := result.Counts()
	assert.Equal(t, len(suite.Steps)-1, passed, "the reset step is not counted")
	assert.Zero(t, failed)
	assert.Equal(t, "off", result.Results[0].PlaybackMode)
}

func TestTestRunResult_ScenePath(t *testing.T) {
	result := TestRunResult{Results: []TestResult{
		{SceneID: "scene_001", Success: true},
		{SceneID: "scene_001", Success: true},
		{Error: assert.AnError},
		{SceneID: "scene_003", Success: true},
		{SceneID: "scene_001", IsReset: true, Success: true},
		{SceneID: "scene_001", Error: assert.AnError},
	}}

	assert.Equal(t, []string{"scene_001", "scene_003", "scene_001"}, result.ScenePath())
	passed, failed := result.Counts()
	assert.Equal(t, 3, passed)
	assert.Equal(t, 2, failed)
}

func TestRunSuite_WaitTimeout(t *testing.T) {
	srv := newServer(t)
	never := "scene_007"

	r := NewRunner(srv.URL)
	result, err := r.RunSuite(context.Background(), TestSuite{
		Name:  "timeout",
		Steps: []TestStep{{Name: "never", WaitMS: 250, Expectations: Expectations{SceneID: &never}}},
	})
	require.Error(t, err)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].IsWait)
	assert.Contains(t, result.Results[0].Error.Error(), "timeout waiting for view")
	assert.Contains(t, result.Results[0].Error.Error(), "expected scene scene_007")
}

func TestLoadTestSuiteWithExpansion(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.json", `{"name":"A","steps":[{"name":"s","intent":{"type":"next"}}]}`)
	write("b.json", `{"name":"B","start_scene":"scene_003"}`)
	write("inner.json", `{"name":"Inner","cases":["b.json"]}`)
	write("outer.json", `{"name":"Outer","cases":["a.json","inner.json"]}`)
	write("broken.json", `{"name":"Broken","cases":["missing.json"]}`)

	jobs, err := LoadTestSuiteWithExpansion(filepath.Join(dir, "outer.json"), dir)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "A", jobs[0].Name)
	assert.Equal(t, state.IntentNext, jobs[0].Suite.Steps[0].Intent.Type)
	assert.Equal(t, "B", jobs[1].Name)
	assert.Equal(t, "scene_003", jobs[1].Suite.StartScene)

	_, err = LoadTestSuiteWithExpansion(filepath.Join(dir, "broken.json"), dir)
	assert.ErrorContains(t, err, "failed to load case 'missing.json' referenced by sequence 'Broken'")
}

func TestCheckExpectations(t *testing.T) {
	view := &state.View{
		SceneID:  "scene_002",
		Index:    1,
		Mode:     "map",
		Line:     &state.LineView{Speaker: "Elara", Text: "Will you help me investigate?"},
		History:  []string{"scene_001", "scene_002"},
		Vars:     conditionals.Vars{"ally": conditionals.String("kain"), "gold": conditionals.Int(3)},
		Playback: state.PlaybackView{Mode: "off"},
		Map: state.MapView{
			Mode: mapnav.ModeRegion,
			World: []mapnav.MajorLocationView{
				{MajorLocation: content.MajorLocation{ID: "emerald_forest"}, Unlocked: true},
			},
			Region: []mapnav.MinorLocationView{
				{MinorLocation: content.MinorLocation{ID: "crystal_cave"}, Unlocked: false},
			},
		},
		Notifications: []state.Notification{{Message: "old"}, {Message: "Game saved to slot 2"}},
		Saves:         []saves.Summary{{Slot: 1, Empty: true}, {Slot: 2, SceneID: "scene_002"}},
	}

	str := func(s string) *string { return &s }
	n := func(i int) *int { return &i }

	tests := []struct {
		name    string
		exp     Expectations
		wantErr string
	}{
		{name: "empty", exp: Expectations{}},
		{
			name: "all match",
			exp: Expectations{
				SceneID: str("scene_002"), Index: n(1), Mode: str("map"), Speaker: str("Elara"),
				LineContains: "INVESTIGATE", HistoryLen: n(2),
				Vars: map[string]string{"ally": "kain", "gold": "3"}, VarsAbsent: []string{"chosen_path"},
				PlaybackMode: str("off"), MapMode: str("region"),
				Unlocked: []string{"emerald_forest"}, Locked: []string{"crystal_cave"},
				Notification: "saved to slot 2", SavedSlots: []int{2},
			},
		},
		{name: "scene", exp: Expectations{SceneID: str("scene_001")}, wantErr: "expected scene scene_001, got scene_002"},
		{name: "var value", exp: Expectations{Vars: map[string]string{"ally": "elara"}}, wantErr: "expected variable ally to be elara, got kain"},
		{name: "var missing", exp: Expectations{Vars: map[string]string{"hp": "1"}}, wantErr: "expected variable hp to be set"},
		{name: "var present", exp: Expectations{VarsAbsent: []string{"ally"}}, wantErr: "expected variable ally to be unset"},
		{name: "speaker", exp: Expectations{Speaker: str("Kain")}, wantErr: `expected speaker "Kain", got "Elara"`},
		{name: "locked", exp: Expectations{Unlocked: []string{"crystal_cave"}}, wantErr: "expected location crystal_cave unlocked=true, got false"},
		{name: "off map", exp: Expectations{Locked: []string{"atlantis"}}, wantErr: "expected location atlantis on the map"},
		{name: "no context", exp: Expectations{Time: str("Day 1, 8:00 AM")}, wantErr: "expected an action context"},
		{name: "notification", exp: Expectations{Notification: "old"}, wantErr: "expected latest notification to contain 'old'"},
		{name: "empty slot", exp: Expectations{SavedSlots: []int{1}}, wantErr: "expected save slot 1 to hold a save"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkExpectations(tt.exp, view)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("context", func(t *testing.T) {
		v := &state.View{Context: &state.ContextView{
			LocationID: "whispering_glade",
			Time:       "Day 1, 8:00 AM",
			Actions:    []state.ActionView{{ID: "explore"}, {ID: "rest"}},
		}}
		assert.NoError(t, checkExpectations(Expectations{
			ContextLocation: str("whispering_glade"),
			Actions:         []string{"explore", "rest"},
		}, v))
		assert.ErrorContains(t, checkExpectations(Expectations{Actions: []string{"rest", "explore"}}, v),
			"expected actions [rest explore], got [explore rest]")
	})
}
