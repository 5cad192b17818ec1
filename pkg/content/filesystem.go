package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileRepository loads game definitions from JSON files under a data directory:
//
//	scenes/<id>.json
//	characters/*.json
//	stats/<preset>_stats.json
//	player/character.json
//	items/<type>/*.json
//	maps/world_map.json
//	maps/regions/*.json
//	actions.json
type FileRepository struct {
	dataDir string
	logger  *slog.Logger
}

// Ensure FileRepository implements Repository interface
var _ Repository = (*FileRepository)(nil)

// NewFileRepository creates a repository rooted at dataDir ("./data" if empty).
func NewFileRepository(dataDir string, logger *slog.Logger) *FileRepository {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &FileRepository{
		dataDir: dataDir,
		logger:  logger,
	}
}

// DataDir returns the root directory the repository reads from.
func (r *FileRepository) DataDir() string {
	return r.dataDir
}

func (r *FileRepository) LoadScene(ctx context.Context, id string) (*Scene, error) {
	if !isSafeID(id) {
		return nil, fmt.Errorf("scene %q: %w", id, ErrNotFound)
	}
	path := filepath.Join(r.dataDir, "scenes", id+".json")
	r.logger.Debug("Loading scene", "scene_id", id, "path", path)

	var s Scene
	if err := r.readJSON(path, &s); err != nil {
		return nil, fmt.Errorf("scene %s: %w", id, err)
	}
	if s.ID == "" {
		s.ID = id
	}
	if err := ValidateScene(&s); err != nil {
		r.logger.Error("Scene failed validation", "scene_id", id, "error", err)
		return nil, fmt.Errorf("scene %s: %w: %v", id, ErrInvalidScene, err)
	}
	return &s, nil
}

func (r *FileRepository) LoadCharacters(ctx context.Context) (map[string]Character, error) {
	characters := make(map[string]Character)
	err := r.scanJSON(filepath.Join(r.dataDir, "characters"), func(path string, data []byte) error {
		var c Character
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		characters[c.ID] = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load characters: %w", err)
	}
	return characters, nil
}

func (r *FileRepository) LoadStatsConfig(ctx context.Context, preset string) ([]StatDef, error) {
	if preset == "" {
		preset = "fantasy"
	}
	if !isSafeID(preset) {
		return nil, fmt.Errorf("stats preset %q: %w", preset, ErrNotFound)
	}
	var defs []StatDef
	path := filepath.Join(r.dataDir, "stats", preset+"_stats.json")
	if err := r.readJSON(path, &defs); err != nil {
		return nil, fmt.Errorf("stats preset %s: %w", preset, err)
	}
	return defs, nil
}

func (r *FileRepository) LoadPlayerStats(ctx context.Context) (*PlayerStats, error) {
	var ps PlayerStats
	if err := r.readJSON(filepath.Join(r.dataDir, "player", "character.json"), &ps); err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	if ps.Stats == nil {
		ps.Stats = map[string]int{}
	}
	return &ps, nil
}

func (r *FileRepository) LoadItems(ctx context.Context) (map[string]Item, error) {
	items := make(map[string]Item)
	err := r.scanJSON(filepath.Join(r.dataDir, "items"), func(path string, data []byte) error {
		var it Item
		if err := json.Unmarshal(data, &it); err != nil {
			return err
		}
		if it.ID == "" {
			it.ID = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		items[it.ID] = it
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return items, nil
}

func (r *FileRepository) LoadWorldMap(ctx context.Context) ([]MajorLocation, error) {
	var locations []MajorLocation
	if err := r.readJSON(filepath.Join(r.dataDir, "maps", "world_map.json"), &locations); err != nil {
		return nil, fmt.Errorf("world map: %w", err)
	}
	return locations, nil
}

func (r *FileRepository) LoadRegionalMaps(ctx context.Context) (map[string]RegionalMap, error) {
	regions := make(map[string]RegionalMap)
	err := r.scanJSON(filepath.Join(r.dataDir, "maps", "regions"), func(path string, data []byte) error {
		var m RegionalMap
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if m.ID == "" {
			m.ID = strings.TrimSuffix(filepath.Base(path), ".json")
		}
		regions[m.ID] = m
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load regional maps: %w", err)
	}
	return regions, nil
}

func (r *FileRepository) LoadActions(ctx context.Context) (map[string]Action, error) {
	var list []Action
	if err := r.readJSON(filepath.Join(r.dataDir, "actions.json"), &list); err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}

	actions := make(map[string]Action, len(list))
	for _, a := range list {
		if a.TimeCost < 0 {
			r.logger.Warn("Skipping action with negative time cost", "action_id", a.ID, "time_cost", a.TimeCost)
			continue
		}
		actions[a.ID] = a
	}
	return actions, nil
}

// readJSON decodes a single file. Missing files wrap ErrNotFound.
func (r *FileRepository) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.logger.Error("Content file not found", "path", path)
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// scanJSON walks dir and hands every .json file to fn. Unreadable or malformed
// files are logged and skipped. A missing directory yields nothing.
func (r *FileRepository) scanJSON(dir string, fn func(path string, data []byte) error) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		r.logger.Warn("Content directory not found", "path", dir)
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("Failed to read content file", "path", path, "error", err)
			return nil
		}
		if err := fn(path, data); err != nil {
			r.logger.Warn("Failed to unmarshal content file", "path", path, "error", err)
		}
		return nil
	})
}

// isSafeID rejects ids that could escape the data directory.
func isSafeID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}
