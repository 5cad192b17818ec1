package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/state"
)

// PollInterval is how often a waiting step re-reads the session view
const PollInterval = 100 * time.Millisecond

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Status, e.Body)
}

// CreateSession starts a session via POST /v1/sessions
func CreateSession(ctx context.Context, client *http.Client, baseURL, profile, startScene string) (*state.View, error) {
	body, err := json.Marshal(map[string]string{
		"profile":     profile,
		"start_scene": startScene,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	var view state.View
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/sessions", body, http.StatusCreated, &view); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &view, nil
}

// DeleteSession ends a session
func DeleteSession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	return doJSON(ctx, client, http.MethodDelete, baseURL+"/v1/sessions/"+sessionID, nil, http.StatusNoContent, nil)
}

// GetView retrieves the current session view
func GetView(ctx context.Context, client *http.Client, baseURL, sessionID string) (*state.View, error) {
	var view state.View
	if err := doJSON(ctx, client, http.MethodGet, baseURL+"/v1/sessions/"+sessionID, nil, http.StatusOK, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PostIntent sends an intent and returns the resulting view. A status other
// than want is returned as *StatusError.
func PostIntent(ctx context.Context, client *http.Client, baseURL, sessionID string, in state.Intent, want int) (*state.View, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent: %w", err)
	}

	var view state.View
	var out interface{} = &view
	if want != http.StatusOK {
		out = nil
	}
	if err := doJSON(ctx, client, http.MethodPost, baseURL+"/v1/sessions/"+sessionID+"/intents", body, want, out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &view, nil
}

// PollForView re-reads the view until check passes or timeout elapses. The
// last check error is returned on timeout.
func PollForView(ctx context.Context, client *http.Client, baseURL, sessionID string, timeout time.Duration, check func(*state.View) error) (*state.View, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		view, err := GetView(ctx, client, baseURL, sessionID)
		if err == nil {
			if lastErr = check(view); lastErr == nil {
				return view, nil
			}
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for view (waited %v): %w", timeout, lastErr)
		case <-ticker.C:
		}
	}
}

func doJSON(ctx context.Context, client *http.Client, method, url string, body []byte, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
