package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/content"
	"github.com/jwebster45206/novel-engine/pkg/saves"
)

// ErrSessionNotFound is returned for ids the registry does not hold.
var ErrSessionNotFound = errors.New("session not found")

// Registry holds the live sessions of a server.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	repo     content.Repository
	store    saves.Store
	defaults Options
	observer func(*Session, View)
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. defaults fill in the Options fields a
// Create call leaves empty.
func NewRegistry(repo content.Repository, store saves.Store, defaults Options, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: map[uuid.UUID]*Session{},
		repo:     repo,
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// Observe registers fn on every session created after the call.
func (r *Registry) Observe(fn func(*Session, View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Create starts a session and registers it.
func (r *Registry) Create(ctx context.Context, opts Options) (*Session, error) {
	if opts.Profile == "" {
		opts.Profile = r.defaults.Profile
	}
	if opts.StartScene == "" {
		opts.StartScene = r.defaults.StartScene
	}
	if opts.StatsPreset == "" {
		opts.StatsPreset = r.defaults.StatsPreset
	}
	if opts.AutoPlaySpeed == 0 {
		opts.AutoPlaySpeed = r.defaults.AutoPlaySpeed
	}

	s, err := NewSession(ctx, r.repo, r.store, opts, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fn := r.observer; fn != nil {
		s.OnChange(func(v View) { fn(s, v) })
	}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes and closes a session.
func (r *Registry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes and removes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[uuid.UUID]*Session{}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.logger.Info("Sessions closed", "count", len(sessions))
}
