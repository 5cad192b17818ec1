// Package command carries one-way requests from game components to the session
// that owns them. Components never call each other across ownership lines; they
// emit a Command and the session decides what to do with it.
package command

import "fmt"

// Mode is the top-level screen a session is showing.
type Mode string

const (
	ModeNovel   Mode = "novel"
	ModeMap     Mode = "map"
	ModeInfo    Mode = "info"
	ModeContext Mode = "context"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNovel, ModeMap, ModeInfo, ModeContext:
		return m, nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Command is implemented by every request a component can emit.
type Command interface {
	isCommand()
}

// NavigateTo asks the session to switch screens.
type NavigateTo struct {
	Mode Mode
}

// Notify asks the session to show a short message to the player.
type Notify struct {
	Level   Level
	Message string
}

func (NavigateTo) isCommand() {}
func (Notify) isCommand()     {}

// Emitter receives commands.
type Emitter interface {
	Emit(cmd Command)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Command)

func (f EmitterFunc) Emit(cmd Command) { f(cmd) }

// Discard drops every command.
var Discard Emitter = EmitterFunc(func(Command) {})

// Recorder keeps every command it receives, in order.
type Recorder struct {
	Commands []Command
}

func (r *Recorder) Emit(cmd Command) {
	r.Commands = append(r.Commands, cmd)
}

// Notifications returns the recorded Notify commands.
func (r *Recorder) Notifications() []Notify {
	var out []Notify
	for _, c := range r.Commands {
		if n, ok := c.(Notify); ok {
			out = append(out, n)
		}
	}
	return out
}

// Navigations returns the recorded NavigateTo commands.
func (r *Recorder) Navigations() []NavigateTo {
	var out []NavigateTo
	for _, c := range r.Commands {
		if n, ok := c.(NavigateTo); ok {
			out = append(out, n)
		}
	}
	return out
}
