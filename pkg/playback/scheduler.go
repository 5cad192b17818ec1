// Package playback runs the auto-play and skip loops that advance dialogue on a timer.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jwebster45206/novel-engine/pkg/narrative"
)

const (
	// DefaultAutoSpeed is the auto-play delay between lines, in seconds.
	DefaultAutoSpeed = 2.0

	// SkipInterval is the fixed delay between lines while skipping.
	SkipInterval = 100 * time.Millisecond
)

// Mode is the playback mode. AutoPlay and Skip are mutually exclusive.
type Mode int

const (
	Off Mode = iota
	AutoPlay
	Skip
)

func (m Mode) String() string {
	switch m {
	case AutoPlay:
		return "auto_play"
	case Skip:
		return "skip"
	default:
		return "off"
	}
}

// Story is the part of the narrative engine the scheduler drives.
type Story interface {
	Advance(ctx context.Context) (narrative.Step, error)
	ShowChoices() bool
}

// Scheduler advances a Story on an interval until choices show, the story
// stops moving, or it is toggled off.
//
// Each run is tagged with a generation number. Toggling bumps the generation and
// cancels the wait of the previous run, so at most one loop ever advances the story.
type Scheduler struct {
	mu        sync.Mutex
	story     Story
	logger    *slog.Logger
	mode      Mode
	autoSpeed time.Duration
	gen       uint64
	cancel    context.CancelFunc
	onStep    func(narrative.Step)
	wg        sync.WaitGroup
}

// New creates a stopped scheduler for story.
func New(story Story, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		story:     story,
		logger:    logger,
		autoSpeed: seconds(DefaultAutoSpeed),
	}
}

// OnStep registers fn to run after every timed advance. fn runs on the loop
// goroutine without any scheduler lock held.
func (s *Scheduler) OnStep(fn func(narrative.Step)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStep = fn
}

// ToggleAutoPlay turns auto-play on (stopping skip) or off. It returns the new mode.
func (s *Scheduler) ToggleAutoPlay() Mode {
	return s.toggle(AutoPlay)
}

// ToggleSkip turns skip on (stopping auto-play) or off. It returns the new mode.
func (s *Scheduler) ToggleSkip() Mode {
	return s.toggle(Skip)
}

func (s *Scheduler) toggle(m Mode) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == m {
		s.stopLocked()
		return s.mode
	}
	s.stopLocked()
	if s.story.ShowChoices() {
		return s.mode
	}

	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mode = m
	s.wg.Add(1)
	go s.run(ctx, s.gen)

	s.logger.Debug("Playback started", "mode", m.String())
	return s.mode
}

// Stop ends any running loop. An advance already in progress still completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Wait blocks until the loop goroutine has exited. Call it after Stop, without
// holding any lock the OnStep callback takes.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.mode != Off {
		s.logger.Debug("Playback stopped", "mode", s.mode.String())
	}
	s.gen++
	s.mode = Off
}

// SetSpeed sets the auto-play delay in seconds. It applies from the next wait.
func (s *Scheduler) SetSpeed(secs float64) error {
	if !(secs > 0) || math.IsInf(secs, 0) {
		return fmt.Errorf("auto-play speed must be positive and finite, got %v", secs)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSpeed = seconds(secs)
	return nil
}

// Speed returns the auto-play delay in seconds.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSpeed.Seconds()
}

func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Scheduler) AutoPlaying() bool { return s.Mode() == AutoPlay }
func (s *Scheduler) Skipping() bool    { return s.Mode() == Skip }

func (s *Scheduler) run(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		if s.story.ShowChoices() {
			s.stopLocked()
			s.mu.Unlock()
			return
		}
		interval := s.autoSpeed
		if s.mode == Skip {
			interval = SkipInterval
		}
		s.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.mu.Lock()
		current := s.gen == gen
		onStep := s.onStep
		s.mu.Unlock()
		if !current {
			return
		}

		step, err := s.story.Advance(context.WithoutCancel(ctx))
		if err != nil {
			s.logger.Warn("Playback advance failed", "error", err)
		}

		done := err != nil || step == narrative.StepChoices || step == narrative.StepDeadEnd || step == narrative.StepActionContext
		if done {
			s.mu.Lock()
			if s.gen == gen {
				s.stopLocked()
			}
			s.mu.Unlock()
		}

		if onStep != nil {
			onStep(step)
		}
		if done {
			return
		}
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
