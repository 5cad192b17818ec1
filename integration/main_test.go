//go:build integration
// +build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/novel-engine/integration/runner"
)

const casesDir = "cases"

var caseFlag = flag.String("case", "", "Comma-separated case names to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")
var startFlag = flag.String("start", "", "Override the start scene for all test cases (e.g., 'scene_003')")

func TestMain(m *testing.M) {
	fmt.Printf("Running Novel Engine Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", apiBaseURL())
	os.Exit(m.Run())
}

// TestIntegrationSuites plays every case under cases/ against the API.
func TestIntegrationSuites(t *testing.T) {
	files, err := filepath.Glob(filepath.Join(casesDir, "*.json"))
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	r := newRunner(t, runner.ErrorHandlingContinue)
	playSuites(t, r, loadJobs(t, files))
}

// TestSingleSuite plays the cases named by -case, for debugging one story path.
func TestSingleSuite(t *testing.T) {
	flag.Parse()
	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}

	mode := runner.ErrorHandlingMode(*errFlag)
	if mode != runner.ErrorHandlingExit && mode != runner.ErrorHandlingContinue {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}

	var files []string
	for _, name := range strings.Split(*caseFlag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		files = append(files, filepath.Join(casesDir, name))
	}
	if len(files) == 0 {
		t.Fatalf("No valid test cases found in -case flag: %s", *caseFlag)
	}

	playSuites(t, newRunner(t, mode), loadJobs(t, files))
}

func newRunner(t *testing.T, mode runner.ErrorHandlingMode) *runner.Runner {
	r := runner.NewRunner(apiBaseURL())
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 30)) * time.Second
	r.ErrorHandlingMode = mode
	r.StartSceneOverride = *startFlag
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	if r.StartSceneOverride != "" {
		t.Logf("Start scene override enabled: %s", r.StartSceneOverride)
	}
	return r
}

func loadJobs(t *testing.T, files []string) []runner.TestJob {
	var jobs []runner.TestJob
	for _, file := range files {
		expanded, err := runner.LoadTestSuiteWithExpansion(file, casesDir)
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expanded...)
	}
	if len(jobs) == 0 {
		t.Fatal("No valid test suites loaded")
	}
	return jobs
}

// playSuites runs each suite in its own session and logs the scenes it
// passed through. Waits are steps that let auto-play or skip advance the
// story on the server's timer.
func playSuites(t *testing.T, r *runner.Runner, jobs []runner.TestJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failed []string
	suitesPassed := 0
	for i, job := range jobs {
		start := job.Suite.StartScene
		if r.StartSceneOverride != "" {
			start = r.StartSceneOverride
		}
		if start == "" {
			start = "(default)"
		}
		t.Logf("[%d/%d] %s: start %s, %d steps", i+1, len(jobs), job.Name, start, len(job.Suite.Steps))

		result, err := r.RunSuite(ctx, job.Suite)
		if err != nil && result.Error == nil {
			result.Error = err
		}

		for _, step := range result.Results {
			switch {
			case step.IsReset:
				t.Logf("   ↻ %s: new session at %s", step.StepName, step.SceneID)
			case !step.Success:
				t.Errorf("   ✗ %s: %v", step.StepName, step.Error)
			case step.IsWait:
				t.Logf("   ⏱ %s: reached %s, playback %s (%v)", step.StepName, step.SceneID, step.PlaybackMode, step.Duration)
			default:
				t.Logf("   ✓ %s: %s (%v)", step.StepName, step.SceneID, step.Duration)
			}
		}

		passed, stepFailures := result.Counts()
		t.Logf("   Session %s, scenes %s", result.SessionID, strings.Join(result.ScenePath(), " → "))
		if result.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", job.Name, result.Error))
			t.Errorf("[%d/%d] FAILED: %s (%d/%d steps passed)", i+1, len(jobs), job.Name, passed, passed+stepFailures)
			if r.ErrorHandlingMode == runner.ErrorHandlingExit {
				break
			}
			continue
		}
		suitesPassed++
		t.Logf("[%d/%d] PASSED: %s in %v", i+1, len(jobs), job.Name, result.Duration)
	}

	t.Logf("Integration Test Summary: %d passed, %d failed", suitesPassed, len(failed))
	if len(failed) > 0 {
		for _, failure := range failed {
			t.Logf("   - %s", failure)
		}
		t.Fatalf("Integration tests failed")
	}
}

func apiBaseURL() string {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func getIntEnv(name string, defaultValue int) int {
	val, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return val
}
