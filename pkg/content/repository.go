package content

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a requested definition does not exist.
	ErrNotFound = errors.New("content not found")

	// ErrInvalidScene is returned for scenes that break authoring rules.
	ErrInvalidScene = errors.New("invalid scene")
)

// Repository loads static game definitions. All methods are read-only and return
// an error wrapping ErrNotFound for missing definitions instead of panicking.
type Repository interface {
	LoadScene(ctx context.Context, id string) (*Scene, error)
	LoadCharacters(ctx context.Context) (map[string]Character, error)
	LoadStatsConfig(ctx context.Context, preset string) ([]StatDef, error)
	LoadPlayerStats(ctx context.Context) (*PlayerStats, error)
	LoadItems(ctx context.Context) (map[string]Item, error)
	LoadWorldMap(ctx context.Context) ([]MajorLocation, error)
	LoadRegionalMaps(ctx context.Context) (map[string]RegionalMap, error)
	LoadActions(ctx context.Context) (map[string]Action, error)
}
