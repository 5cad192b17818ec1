package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/novel-engine/pkg/conditionals"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// Issue is one problem found in the content, tied to the file it came from.
type Issue struct {
	File    string `json:"file" yaml:"file"`
	Message string `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	return i.File + ": " + i.Message
}

// Report is the outcome of a validation run.
type Report struct {
	DataDir    string  `json:"data_dir" yaml:"data_dir"`
	Scenes     int     `json:"scenes" yaml:"scenes"`
	Characters int     `json:"characters" yaml:"characters"`
	Locations  int     `json:"locations" yaml:"locations"`
	Actions    int     `json:"actions" yaml:"actions"`
	Errors     []Issue `json:"errors" yaml:"errors"`
	Warnings   []Issue `json:"warnings" yaml:"warnings"`
}

// DataValidator checks a data directory for content that would break or strand
// a player at runtime.
type DataValidator struct {
	dataDir    string
	startScene string
	repo       *content.FileRepository
	report     *Report
}

func NewDataValidator(dataDir, startScene string, logger *slog.Logger) *DataValidator {
	return &DataValidator{
		dataDir:    dataDir,
		startScene: startScene,
		repo:       content.NewFileRepository(dataDir, logger),
	}
}

// Validate runs every check and returns the report. Issues are sorted for
// stable output.
func (v *DataValidator) Validate() *Report {
	v.report = &Report{DataDir: v.dataDir, Errors: []Issue{}, Warnings: []Issue{}}
	ctx := context.Background()

	characters, err := v.repo.LoadCharacters(ctx)
	if err != nil {
		v.addError("characters", err.Error())
	}
	v.report.Characters = len(characters)

	scenes := v.validateScenes(characters)
	v.validateGraph(scenes)

	actions, err := v.repo.LoadActions(ctx)
	if err != nil {
		v.addError("actions.json", err.Error())
	}
	v.report.Actions = len(actions)

	v.validateMaps(ctx, actions)

	sortIssues(v.report.Errors)
	sortIssues(v.report.Warnings)
	return v.report
}

// validateScenes strictly decodes every scene file and checks its references.
func (v *DataValidator) validateScenes(characters map[string]content.Character) map[string]*content.Scene {
	scenes := make(map[string]*content.Scene)
	dir := filepath.Join(v.dataDir, "scenes")

	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(paths) == 0 {
		v.addError("scenes", "no scene files found in "+dir)
		return scenes
	}

	for _, path := range paths {
		file := filepath.Join("scenes", filepath.Base(path))
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		v.validateIDFormat(file, "scene ID", id)

		data, err := os.ReadFile(path)
		if err != nil {
			v.addError(file, fmt.Sprintf("failed to read: %v", err))
			continue
		}

		var s content.Scene
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&s); err != nil {
			v.addError(file, fmt.Sprintf("failed strict JSON unmarshaling: %v", err))
			continue
		}

		if s.ID != "" && s.ID != id {
			v.addError(file, fmt.Sprintf("id %q does not match filename", s.ID))
		}
		s.ID = id

		if err := content.ValidateScene(&s); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				v.addError(file, line)
			}
		}
		v.validateSpeakers(file, &s, characters)
		scenes[id] = &s
	}

	v.report.Scenes = len(scenes)
	return scenes
}

func (v *DataValidator) validateSpeakers(file string, s *content.Scene, characters map[string]content.Character) {
	if characters == nil {
		return
	}
	for i, line := range s.Dialogue {
		if _, ok := characters[line.Character]; !ok && line.Character != content.NarratorID {
			v.addError(file, fmt.Sprintf("dialogue line %d speaker %q is not a known character", i, line.Character))
		}
	}
	for _, sprite := range s.Characters {
		c, ok := characters[sprite.ID]
		if !ok {
			v.addError(file, fmt.Sprintf("sprite %q is not a known character", sprite.ID))
			continue
		}
		if sprite.Sprite != "" {
			if _, ok := c.Sprites[sprite.Sprite]; !ok {
				v.addWarning(file, fmt.Sprintf("character %s has no %q sprite", sprite.ID, sprite.Sprite))
			}
		}
	}
}

// validateGraph checks that every scene target exists and reports scenes the
// start scene can never reach.
func (v *DataValidator) validateGraph(scenes map[string]*content.Scene) {
	if len(scenes) == 0 {
		return
	}

	exists := func(id string) bool {
		_, ok := scenes[id]
		return ok || id == content.ActionMenuSceneID
	}

	for id, s := range scenes {
		file := filepath.Join("scenes", id+".json")
		if s.NextScene != "" && !exists(s.NextScene) {
			v.addError(file, fmt.Sprintf("nextScene %q does not exist", s.NextScene))
		}
		for i, c := range s.Choices {
			if c.NextScene != "" && !exists(c.NextScene) {
				v.addError(file, fmt.Sprintf("choice %d nextScene %q does not exist", i, c.NextScene))
			}
			for name := range c.SetVars {
				if !isValidVariableName(name) {
					v.addError(file, fmt.Sprintf("choice %d sets invalid variable name '%s' - should be lowercase snake_case", i, name))
				}
			}
		}
	}

	if _, ok := scenes[v.startScene]; !ok {
		v.addError("scenes", fmt.Sprintf("start scene %q does not exist", v.startScene))
		return
	}

	seen := map[string]bool{v.startScene: true}
	queue := []string{v.startScene}
	for len(queue) > 0 {
		s := scenes[queue[0]]
		queue = queue[1:]

		targets := []string{s.NextScene}
		for _, c := range s.Choices {
			targets = append(targets, c.NextScene)
		}
		for _, t := range targets {
			if _, ok := scenes[t]; ok && !seen[t] {
				seen[t] = true
				queue = append(queue, t)
			}
		}
	}
	for id := range scenes {
		if !seen[id] {
			v.addWarning(filepath.Join("scenes", id+".json"), fmt.Sprintf("not reachable from %s", v.startScene))
		}
	}
}

func (v *DataValidator) validateMaps(ctx context.Context, actions map[string]content.Action) {
	world, err := v.repo.LoadWorldMap(ctx)
	if err != nil {
		v.addError("maps/world_map.json", err.Error())
		return
	}
	regions, err := v.repo.LoadRegionalMaps(ctx)
	if err != nil {
		v.addError("maps/regions", err.Error())
	}

	worldFile := filepath.Join("maps", "world_map.json")
	majors := make(map[string]bool, len(world))
	for _, loc := range world {
		v.validateIDFormat(worldFile, "major location ID", loc.ID)
		v.validateCondition(worldFile, loc.ID, loc.UnlockCondition)
		majors[loc.ID] = true
		if _, ok := regions[content.RegionKey(loc.ID)]; !ok {
			v.addWarning(worldFile, fmt.Sprintf("location %s has no regional map %s", loc.ID, content.RegionKey(loc.ID)))
		}
	}

	for key, region := range regions {
		file := filepath.Join("maps", "regions", key+".json")
		if key != content.RegionKey(region.MajorLocationID) {
			v.addError(file, fmt.Sprintf("region id %q does not match major_location_id %q (want %q)",
				key, region.MajorLocationID, content.RegionKey(region.MajorLocationID)))
		}
		if !majors[region.MajorLocationID] {
			v.addWarning(file, fmt.Sprintf("major location %q is not on the world map", region.MajorLocationID))
		}
		for _, loc := range region.Locations {
			v.report.Locations++
			v.validateIDFormat(file, "minor location ID", loc.ID)
			v.validateCondition(file, loc.ID, loc.UnlockCondition)
			for _, actionID := range loc.AvailableActions {
				if _, ok := actions[actionID]; !ok && actions != nil {
					v.addError(file, fmt.Sprintf("location %s offers unknown action %q", loc.ID, actionID))
				}
			}
		}
	}
	v.report.Locations += len(world)
}

func (v *DataValidator) validateCondition(file, locationID, condition string) {
	if condition == "" {
		return
	}
	if _, err := conditionals.ParsePredicate(condition); err != nil {
		v.addError(file, fmt.Sprintf("location %s unlock_condition %q does not parse: %v", locationID, condition, err))
	}
}

func (v *DataValidator) validateIDFormat(file, fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(file, fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *DataValidator) addError(file, msg string) {
	v.report.Errors = append(v.report.Errors, Issue{File: file, Message: msg})
}

func (v *DataValidator) addWarning(file, msg string) {
	v.report.Warnings = append(v.report.Warnings, Issue{File: file, Message: msg})
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].File != issues[j].File {
			return issues[i].File < issues[j].File
		}
		return issues[i].Message < issues[j].Message
	})
}

var (
	validIDRegex  = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validVarRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidVariableName(name string) bool {
	return validVarRegex.MatchString(name)
}
