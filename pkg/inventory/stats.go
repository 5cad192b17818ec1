package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

const (
	baseAC      = 10
	hpPerLevel  = 10
	playerActor = "player"
)

// StatView is one configured stat with the player's score.
type StatView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Value       int    `json:"value"`
	Modifier    int    `json:"modifier"`
}

// Sheet is the character screen.
type Sheet struct {
	Level         int        `json:"level"`
	XP            int        `json:"xp"`
	XPToNextLevel int        `json:"xp_to_next_level"`
	XPPercent     float64    `json:"xp_percent"`
	ClassName     string     `json:"class_name"`
	Race          string     `json:"race"`
	HP            int        `json:"hp"`
	MaxHP         int        `json:"max_hp"`
	AC            int        `json:"ac"`
	Stats         []StatView `json:"stats"`
}

// BuildSheet projects the player's scores onto a stats preset through a d20 actor.
// Stats the player has no score for read as 0.
func BuildSheet(ps *content.PlayerStats, defs []content.StatDef) (*Sheet, error) {
	if ps == nil {
		return nil, fmt.Errorf("player stats are required")
	}

	level := max(ps.Level, 1)
	actor, err := d20.NewActor(playerActor).
		WithHP(level * hpPerLevel).
		WithAC(baseAC).
		WithAttributes(ps.Stats).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build actor: %w", err)
	}

	sheet := &Sheet{
		Level:         ps.Level,
		XP:            ps.XP,
		XPToNextLevel: ps.XPToNextLevel,
		XPPercent:     xpPercent(ps.XP, ps.XPToNextLevel),
		ClassName:     ps.ClassName,
		Race:          ps.Race,
		HP:            actor.HP(),
		MaxHP:         actor.MaxHP(),
		AC:            actor.AC(),
	}
	for _, def := range defs {
		score, _ := actor.Attribute(def.ID)
		sheet.Stats = append(sheet.Stats, StatView{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Icon:        def.Icon,
			Value:       score,
			Modifier:    Modifier(score),
		})
	}
	return sheet, nil
}

// Modifier is the ability modifier for a score: floor((score - 10) / 2).
func Modifier(score int) int {
	d := score - 10
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}

func xpPercent(xp, next int) float64 {
	if next <= 0 {
		return 0
	}
	p := float64(xp) / float64(next) * 100
	return min(max(p, 0), 100)
}

// Projection is the inventory and character sheet shown on the info screen.
type Projection struct {
	Inventory *Inventory
	Sheet     *Sheet
}

// Load builds a projection from content. Missing content degrades to an empty
// catalog or a nil sheet and is logged.
func Load(ctx context.Context, repo content.Repository, preset string, logger *slog.Logger) *Projection {
	items, err := repo.LoadItems(ctx)
	if err != nil {
		logger.Warn("Failed to load items", "error", err)
		items = map[string]content.Item{}
	}
	p := &Projection{Inventory: New(items, StartingItems())}

	ps, err := repo.LoadPlayerStats(ctx)
	if err != nil {
		logger.Warn("Failed to load player stats", "error", err)
		return p
	}
	defs, err := repo.LoadStatsConfig(ctx, preset)
	if err != nil {
		logger.Warn("Failed to load stats config", "preset", preset, "error", err)
	}
	sheet, err := BuildSheet(ps, defs)
	if err != nil {
		logger.Warn("Failed to build character sheet", "error", err)
		return p
	}
	p.Sheet = sheet
	return p
}
