package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running novel-engine API
type Runner struct {
	BaseURL            string
	Client             *http.Client
	Timeout            time.Duration // upper bound for steps that poll
	Logger             func(format string, args ...interface{})
	ErrorHandlingMode  ErrorHandlingMode
	StartSceneOverride string // If set, overrides the start scene for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite in a fresh session. The session is
// deleted when the suite ends; saves written under its profile remain.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	profile := suite.Profile
	if profile == "" {
		profile = "integration-" + uuid.NewString()
	}
	startScene := suite.StartScene
	if r.StartSceneOverride != "" {
		startScene = r.StartSceneOverride
	}

	view, err := CreateSession(ctx, r.Client, r.BaseURL, profile, startScene)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result, result.Error
	}
	sessionID := view.SessionID
	result.SessionID = sessionID

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)

		stepResult, nextID := r.runStep(ctx, sessionID, profile, startScene, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)
		if nextID != "" {
			sessionID = nextID
			result.SessionID = sessionID
		}

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	if err := DeleteSession(ctx, r.Client, r.BaseURL, sessionID); err != nil {
		r.Logger("    Warning: failed to delete session %s: %v", sessionID, err)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a single test step and checks expectations. A reset step
// replaces the session, and the new session ID is returned alongside the
// result.
func (r *Runner) runStep(ctx context.Context, sessionID, profile, startScene string, step TestStep) (TestResult, string) {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
		IsReset:  step.Reset,
		IsWait:   step.WaitMS > 0,
	}

	fail := func(err error) (TestResult, string) {
		result.Error = err
		result.Duration = time.Since(start)
		return result, ""
	}

	var view *state.View
	var newID string
	var err error

	switch {
	case step.Reset:
		if err := DeleteSession(ctx, r.Client, r.BaseURL, sessionID); err != nil {
			return fail(fmt.Errorf("failed to delete session on reset: %w", err))
		}
		view, err = CreateSession(ctx, r.Client, r.BaseURL, profile, startScene)
		if err != nil {
			return fail(fmt.Errorf("failed to reset session: %w", err))
		}
		newID = view.SessionID
		sessionID = newID

	case step.Intent != nil:
		want := step.ExpectStatus
		if want == 0 {
			want = http.StatusOK
		}
		view, err = PostIntent(ctx, r.Client, r.BaseURL, sessionID, *step.Intent, want)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				return fail(fmt.Errorf("expected status %d: %w", want, err))
			}
			return fail(fmt.Errorf("failed to post intent %s: %w", step.Intent.Type, err))
		}
	}

	check := func(v *state.View) error {
		return checkExpectations(step.Expectations, v)
	}

	if step.WaitMS > 0 {
		timeout := time.Duration(step.WaitMS) * time.Millisecond
		if r.Timeout > 0 && timeout > r.Timeout {
			timeout = r.Timeout
		}
		polled, err := PollForView(ctx, r.Client, r.BaseURL, sessionID, timeout, check)
		if err != nil {
			result.Error = fmt.Errorf("expectation failed: %w", err)
			result.Duration = time.Since(start)
			return result, newID
		}
		view = polled
	} else {
		if view == nil {
			if view, err = GetView(ctx, r.Client, r.BaseURL, sessionID); err != nil {
				result.Error = fmt.Errorf("failed to get view: %w", err)
				result.Duration = time.Since(start)
				return result, newID
			}
		}
		if err := check(view); err != nil {
			result.SceneID = view.SceneID
			result.Error = fmt.Errorf("expectation failed: %w", err)
			result.Duration = time.Since(start)
			return result, newID
		}
	}

	result.Success = true
	result.SceneID = view.SceneID
	result.PlaybackMode = view.Playback.Mode
	result.Duration = time.Since(start)
	return result, newID
}

// checkExpectations validates the test expectations against a session view
func checkExpectations(exp Expectations, v *state.View) error {
	if exp.SceneID != nil && v.SceneID != *exp.SceneID {
		return fmt.Errorf("expected scene %s, got %s", *exp.SceneID, v.SceneID)
	}
	if exp.Index != nil && v.Index != *exp.Index {
		return fmt.Errorf("expected index %d, got %d", *exp.Index, v.Index)
	}
	if exp.Mode != nil && string(v.Mode) != *exp.Mode {
		return fmt.Errorf("expected mode %s, got %s", *exp.Mode, v.Mode)
	}
	if exp.ShowChoices != nil && v.ShowChoices != *exp.ShowChoices {
		return fmt.Errorf("expected show_choices to be %t, got %t", *exp.ShowChoices, v.ShowChoices)
	}
	if exp.CanRetreat != nil && v.CanRetreat != *exp.CanRetreat {
		return fmt.Errorf("expected can_retreat to be %t, got %t", *exp.CanRetreat, v.CanRetreat)
	}
	if exp.HistoryLen != nil && len(v.History) != *exp.HistoryLen {
		return fmt.Errorf("expected %d scenes in history, got %d: %v", *exp.HistoryLen, len(v.History), v.History)
	}

	if exp.Speaker != nil || exp.LineContains != "" {
		if v.Line == nil {
			return fmt.Errorf("expected a dialogue line, got none")
		}
		if exp.Speaker != nil && v.Line.Speaker != *exp.Speaker {
			return fmt.Errorf("expected speaker %q, got %q", *exp.Speaker, v.Line.Speaker)
		}
		if exp.LineContains != "" && !strings.Contains(strings.ToLower(v.Line.Text), strings.ToLower(exp.LineContains)) {
			return fmt.Errorf("expected line to contain '%s', got '%s'", exp.LineContains, v.Line.Text)
		}
	}

	for key, expectedValue := range exp.Vars {
		actual, exists := v.Vars[key]
		if !exists {
			return fmt.Errorf("expected variable %s to be set, but it doesn't exist", key)
		}
		if actual.String() != expectedValue {
			return fmt.Errorf("expected variable %s to be %s, got %s", key, expectedValue, actual.String())
		}
	}
	for _, key := range exp.VarsAbsent {
		if _, exists := v.Vars[key]; exists {
			return fmt.Errorf("expected variable %s to be unset, got %s", key, v.Vars[key].String())
		}
	}

	if exp.PlaybackMode != nil && v.Playback.Mode != *exp.PlaybackMode {
		return fmt.Errorf("expected playback mode %s, got %s", *exp.PlaybackMode, v.Playback.Mode)
	}
	if exp.TextSpeed != nil && v.Settings.TextSpeed != *exp.TextSpeed {
		return fmt.Errorf("expected text speed %v, got %v", *exp.TextSpeed, v.Settings.TextSpeed)
	}

	if exp.MapMode != nil && string(v.Map.Mode) != *exp.MapMode {
		return fmt.Errorf("expected map mode %s, got %s", *exp.MapMode, v.Map.Mode)
	}
	if exp.RegionID != nil && v.Map.RegionID != *exp.RegionID {
		return fmt.Errorf("expected region %s, got %s", *exp.RegionID, v.Map.RegionID)
	}
	if err := checkLocks(v.Map, exp.Locked, false); err != nil {
		return err
	}
	if err := checkLocks(v.Map, exp.Unlocked, true); err != nil {
		return err
	}

	if exp.ContextLocation != nil || exp.Time != nil || exp.Actions != nil {
		if v.Context == nil {
			return fmt.Errorf("expected an action context, got none (mode %s)", v.Mode)
		}
		if exp.ContextLocation != nil && v.Context.LocationID != *exp.ContextLocation {
			return fmt.Errorf("expected context location %s, got %s", *exp.ContextLocation, v.Context.LocationID)
		}
		if exp.Time != nil && v.Context.Time != *exp.Time {
			return fmt.Errorf("expected time %s, got %s", *exp.Time, v.Context.Time)
		}
		if exp.Actions != nil {
			ids := make([]string, 0, len(v.Context.Actions))
			for _, a := range v.Context.Actions {
				ids = append(ids, a.ID)
			}
			if strings.Join(ids, ",") != strings.Join(exp.Actions, ",") {
				return fmt.Errorf("expected actions %v, got %v", exp.Actions, ids)
			}
		}
	}

	if exp.Notification != "" {
		if len(v.Notifications) == 0 {
			return fmt.Errorf("expected a notification containing '%s', got none", exp.Notification)
		}
		last := v.Notifications[len(v.Notifications)-1].Message
		if !strings.Contains(strings.ToLower(last), strings.ToLower(exp.Notification)) {
			return fmt.Errorf("expected latest notification to contain '%s', got '%s'", exp.Notification, last)
		}
	}

	for _, slot := range exp.SavedSlots {
		found := false
		for _, s := range v.Saves {
			if s.Slot == slot && !s.Empty {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("expected save slot %d to hold a save", slot)
		}
	}

	return nil
}

// checkLocks looks up each id on the world map and the open regional map.
func checkLocks(m state.MapView, ids []string, unlocked bool) error {
	for _, id := range ids {
		open, ok := lockState(m, id)
		if !ok {
			return fmt.Errorf("expected location %s on the map, but it's missing", id)
		}
		if open != unlocked {
			return fmt.Errorf("expected location %s unlocked=%t, got %t", id, unlocked, open)
		}
	}
	return nil
}

func lockState(m state.MapView, id string) (bool, bool) {
	for _, loc := range m.World {
		if loc.ID == id {
			return loc.Unlocked, true
		}
	}
	for _, loc := range m.Region {
		if loc.ID == id {
			return loc.Unlocked, true
		}
	}
	return false, false
}
