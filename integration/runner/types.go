package runner

import (
	"time"

	"github.com/jwebster45206/novel-engine/pkg/state"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name       string     `json:"name"`
	StartScene string     `json:"start_scene,omitempty"` // Used for regular tests
	Profile    string     `json:"profile,omitempty"`     // Save profile; a unique one is generated when empty
	Steps      []TestStep `json:"steps,omitempty"`       // Used for regular tests
	Cases      []string   `json:"cases,omitempty"`       // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single interaction and its expected outcome.
// A step either sends Intent, resets the session (Reset), or only checks the
// current view. With WaitMS set, the view is polled until the expectations
// hold or the wait runs out, for playback that advances on its own.
type TestStep struct {
	Name         string        `json:"name,omitempty"`
	Intent       *state.Intent `json:"intent,omitempty"`
	Reset        bool          `json:"reset,omitempty"`
	WaitMS       int           `json:"wait_ms,omitempty"`
	ExpectStatus int           `json:"expect_status,omitempty"` // defaults to 200
	Expectations Expectations  `json:"expect"`
}

// Expectations defines what to check in the session view after a step.
type Expectations struct {
	SceneID      *string `json:"scene_id,omitempty"`
	Index        *int    `json:"index,omitempty"`
	Mode         *string `json:"mode,omitempty"`
	ShowChoices  *bool   `json:"show_choices,omitempty"`
	CanRetreat   *bool   `json:"can_retreat,omitempty"`
	Speaker      *string `json:"speaker,omitempty"`
	LineContains string  `json:"line_contains,omitempty"`
	HistoryLen   *int    `json:"history_len,omitempty"`

	Vars       map[string]string `json:"vars,omitempty"`
	VarsAbsent []string          `json:"vars_absent,omitempty"`

	PlaybackMode *string  `json:"playback_mode,omitempty"`
	TextSpeed    *float64 `json:"text_speed,omitempty"`

	MapMode  *string  `json:"map_mode,omitempty"`
	RegionID *string  `json:"region_id,omitempty"`
	Locked   []string `json:"locked,omitempty"`   // location ids shown locked on the current map
	Unlocked []string `json:"unlocked,omitempty"` // location ids shown unlocked on the current map

	ContextLocation *string  `json:"context_location,omitempty"`
	Time            *string  `json:"time,omitempty"`
	Actions         []string `json:"actions,omitempty"` // action ids, in order

	Notification string `json:"notification_contains,omitempty"` // matched against the latest notification
	SavedSlots   []int  `json:"saved_slots,omitempty"`           // 1-based slots that must hold a save
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	IsReset  bool // True for reset steps (should not count toward pass/fail metrics)
	IsWait   bool // True for steps that polled for playback

	SceneID      string // scene shown after the step, when a view was read
	PlaybackMode string
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	SessionID string // ID of the last session used for this test
}

// ScenePath lists the scenes the suite passed through, in order, with
// consecutive repeats collapsed. A reset starts the path over at its scene.
func (r TestRunResult) ScenePath() []string {
	var path []string
	for _, step := range r.Results {
		if step.SceneID == "" {
			continue
		}
		if len(path) > 0 && path[len(path)-1] == step.SceneID {
			continue
		}
		path = append(path, step.SceneID)
	}
	return path
}

// Counts returns how many steps passed and failed. Reset steps are not counted.
func (r TestRunResult) Counts() (passed, failed int) {
	for _, step := range r.Results {
		switch {
		case step.IsReset:
		case step.Success:
			passed++
		default:
			failed++
		}
	}
	return passed, failed
}
