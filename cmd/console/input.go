package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/mapnav"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

// localCommand is a console-only command that does not reach the API.
type localCommand string

const (
	localNone  localCommand = ""
	localHelp  localCommand = "help"
	localVars  localCommand = "vars"
	localSaves localCommand = "saves"
	localQuit  localCommand = "quit"
)

var errEmptyInput = errors.New("empty input")

// parseInput turns a line typed at the prompt into an intent for the current
// view, or a local command. An empty line advances the dialogue.
func parseInput(input string, view *state.View) (state.Intent, localCommand, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		if view != nil && view.Mode == command.ModeNovel && !view.ShowChoices {
			return state.Next(), localNone, nil
		}
		return state.Intent{}, localNone, errEmptyInput
	}

	if n, err := strconv.Atoi(input); err == nil {
		in, err := selectNumber(n, view)
		return in, localNone, err
	}

	if !strings.HasPrefix(input, "/") {
		return state.Intent{}, localNone, fmt.Errorf("unrecognized input %q, type /help", input)
	}

	fields := strings.Fields(strings.ToLower(input))
	name, args := fields[0], fields[1:]

	switch name {
	case "/help":
		return state.Intent{}, localHelp, nil
	case "/vars":
		return state.Intent{}, localVars, nil
	case "/saves":
		return state.Intent{}, localSaves, nil
	case "/quit", "/exit":
		return state.Intent{}, localQuit, nil
	case "/next":
		return state.Next(), localNone, nil
	case "/prev", "/back":
		if name == "/back" && view != nil && view.Mode == command.ModeMap {
			return state.BackToWorld(), localNone, nil
		}
		return state.Prev(), localNone, nil
	case "/auto":
		return state.ToggleAutoPlay(), localNone, nil
	case "/skip":
		return state.ToggleSkip(), localNone, nil
	case "/novel", "/map", "/info", "/context":
		return state.SetMode(command.Mode(strings.TrimPrefix(name, "/"))), localNone, nil
	case "/mode":
		if len(args) != 1 {
			return state.Intent{}, localNone, errors.New("usage: /mode novel|map|context|info")
		}
		mode, err := command.ParseMode(args[0])
		if err != nil {
			return state.Intent{}, localNone, err
		}
		return state.SetMode(mode), localNone, nil
	case "/scene":
		if len(args) != 1 {
			return state.Intent{}, localNone, errors.New("usage: /scene <scene_id>")
		}
		return state.ChangeScene(args[0]), localNone, nil
	case "/save", "/load":
		if len(args) != 1 {
			return state.Intent{}, localNone, fmt.Errorf("usage: %s <slot>", name)
		}
		slot, err := strconv.Atoi(args[0])
		if err != nil || slot < 1 {
			return state.Intent{}, localNone, fmt.Errorf("invalid slot %q", args[0])
		}
		if name == "/load" {
			return state.Load(slot - 1), localNone, nil
		}
		thumb := ""
		if view != nil {
			thumb = view.Background
		}
		return state.Save(slot-1, thumb), localNone, nil
	case "/textspeed", "/autospeed":
		if len(args) != 1 {
			return state.Intent{}, localNone, fmt.Errorf("usage: %s <seconds>", name)
		}
		speed, err := strconv.ParseFloat(args[0], 64)
		if err != nil || speed <= 0 {
			return state.Intent{}, localNone, fmt.Errorf("invalid speed %q", args[0])
		}
		if name == "/textspeed" {
			return state.SetTextSpeed(speed), localNone, nil
		}
		return state.SetAutoSpeed(speed), localNone, nil
	default:
		return state.Intent{}, localNone, fmt.Errorf("unknown command %s, type /help", name)
	}
}

// selectNumber maps a 1-based number onto whatever list the current screen shows.
func selectNumber(n int, view *state.View) (state.Intent, error) {
	if view == nil {
		return state.Intent{}, errors.New("no session")
	}
	i := n - 1

	switch view.Mode {
	case command.ModeNovel:
		if !view.ShowChoices {
			return state.Intent{}, errors.New("no choices to pick from")
		}
		if i < 0 || i >= len(view.Choices) {
			return state.Intent{}, fmt.Errorf("choice %d does not exist", n)
		}
		return state.Choose(i), nil
	case command.ModeMap:
		if view.Map.Mode == mapnav.ModeRegion {
			if i < 0 || i >= len(view.Map.Region) {
				return state.Intent{}, fmt.Errorf("location %d does not exist", n)
			}
			return state.SelectMinor(view.Map.Region[i].ID), nil
		}
		if i < 0 || i >= len(view.Map.World) {
			return state.Intent{}, fmt.Errorf("location %d does not exist", n)
		}
		return state.SelectMajor(view.Map.World[i].ID), nil
	case command.ModeContext:
		if view.Context == nil || i < 0 || i >= len(view.Context.Actions) {
			return state.Intent{}, fmt.Errorf("action %d does not exist", n)
		}
		return state.PerformAction(view.Context.Actions[i].ID), nil
	default:
		return state.Intent{}, errors.New("nothing to select here")
	}
}
