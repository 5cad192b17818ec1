package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/novel-engine/pkg/command"
	"github.com/jwebster45206/novel-engine/pkg/mapnav"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

const (
	PlaceHolderText = "Enter to continue, a number to choose, /help for commands"
	pollInterval    = 300 * time.Millisecond
	shownNotices    = 3
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config        *ConsoleConfig
	api           *apiClient
	view          *state.View
	storyViewport viewport.Model
	metaViewport  viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	err           error
	busy          bool
	local         string // output of the last console-only command

	events    <-chan SSEEvent // nil when no event stream is connected
	streaming bool
	polling   bool

	// Quit confirmation state
	showQuitModal bool
}

type viewMsg struct {
	view *state.View
	err  error
}

type sseMsg struct{ event SSEEvent }

type sseClosedMsg struct{}

type pollMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Strikethrough(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient, view *state.View, events <-chan SSEEvent) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:        cfg,
		api:           api,
		view:          view,
		textarea:      ta,
		storyViewport: storyVp,
		metaViewport:  metaVp,
		events:        events,
		streaming:     events != nil,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	// Init cannot return the model, so playback polling starts on the first view update.
	return tea.Batch(textarea.Blink, m.waitForEvent())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		storyWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - storyWidth - 6

		m.storyViewport.Width = storyWidth - 2
		m.storyViewport.Height = m.height - 6
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(storyWidth - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			m.storyViewport, vpCmd = m.storyViewport.Update(msg)
			return m, vpCmd
		case tea.KeyEnter:
			if m.busy {
				return m, nil
			}
			input := m.textarea.Value()
			m.textarea.Reset()
			return m.handleInput(input)
		}

	case viewMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
		} else if msg.view != nil {
			m.err = nil
			m.view = msg.view
		}
		m.refresh()
		cmd := m.maybePoll()
		return m, cmd

	case sseMsg:
		if msg.event.Type == "session.view_updated" {
			if v, err := decodeView(msg.event.Data); err == nil {
				m.view = v
				m.refresh()
			}
		}
		return m, m.waitForEvent()

	case sseClosedMsg:
		m.streaming = false
		m.events = nil
		cmd := m.maybePoll()
		return m, cmd

	case pollMsg:
		m.polling = false
		if m.streaming || m.view == nil {
			return m, nil
		}
		return m, m.fetchView()
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	in, local, err := parseInput(input, m.view)
	switch {
	case err == errEmptyInput:
		return m, nil
	case err != nil:
		m.err = err
		m.refresh()
		return m, nil
	}

	switch local {
	case localQuit:
		m.showQuitModal = true
		return m, nil
	case localHelp:
		m.local = helpText
		m.refresh()
		return m, nil
	case localVars:
		m.local = writeVars(m.view)
		m.refresh()
		return m, nil
	case localSaves:
		m.local = writeSaves(m.view)
		m.refresh()
		return m, nil
	}

	m.local = ""
	m.err = nil
	m.busy = true
	return m, m.sendIntent(in)
}

// refresh redraws both panels from the current view.
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := m.storyViewport.Width - 6
	if width < 20 {
		width = 20
	}
	m.storyViewport.SetContent(writeStory(m.view, width, m.local, m.err))
	m.storyViewport.GotoBottom()
	m.metaViewport.SetContent(writeMetadata(m.view, m.streaming))
}

// writeStory renders the main panel for the view's mode.
func writeStory(v *state.View, width int, local string, err error) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("NOVEL ENGINE") + "\n\n")
	if v == nil {
		b.WriteString("Waiting for session...\n")
		return b.String()
	}

	switch v.Mode {
	case command.ModeMap:
		writeMap(&b, v, width)
	case command.ModeContext:
		writeContext(&b, v, width)
	case command.ModeInfo:
		writeInfo(&b, v)
	default:
		writeNovel(&b, v, width)
	}

	notices := v.Notifications
	if len(notices) > shownNotices {
		notices = notices[len(notices)-shownNotices:]
	}
	if len(notices) > 0 {
		b.WriteString("\n" + separatorStyle.Render(strings.Repeat("─", width)) + "\n")
		for _, n := range notices {
			b.WriteString(noticeStyle(n.Level).Render(n.Message) + "\n")
		}
	}

	if local != "" {
		b.WriteString("\n" + local + "\n")
	}
	if err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+err.Error()) + "\n")
	}
	return b.String()
}

func writeNovel(b *strings.Builder, v *state.View, width int) {
	b.WriteString(dimStyle.Render(fmt.Sprintf("[%s] %s", v.SceneID, v.Background)) + "\n")
	if len(v.Sprites) > 0 {
		var names []string
		for _, s := range v.Sprites {
			names = append(names, fmt.Sprintf("%s (%s)", s.ID, s.Position))
		}
		b.WriteString(dimStyle.Render("On stage: "+strings.Join(names, ", ")) + "\n")
	}
	b.WriteString("\n")

	// Earlier lines of this scene, then the current one highlighted.
	log := v.DialogueLog
	if len(log) > 0 {
		log = log[:len(log)-1]
	}
	start := len(log) - 6
	if start < 0 {
		start = 0
	}
	for _, line := range log[start:] {
		b.WriteString(dimStyle.Render(wordwrap.String(line.Character+": "+line.Text, width)) + "\n\n")
	}

	if v.Line != nil {
		b.WriteString(formatLine(v.Line, width) + "\n\n")
	}

	if v.ShowChoices {
		for i, c := range v.Choices {
			b.WriteString(choiceStyle.Render(fmt.Sprintf("  %d) %s", i+1, c.Text)) + "\n")
		}
		b.WriteString("\n")
	}
}

// formatLine renders a dialogue line with the speaker in their color.
func formatLine(line *state.LineView, width int) string {
	style := narratorStyle
	if line.Color != "" {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(line.Color))
	}
	prefix := line.Speaker + ": "
	wrapped := wordwrap.String(line.Text, max(width-len(prefix), 10))
	return style.Bold(true).Render(prefix) + strings.ReplaceAll(wrapped, "\n", "\n"+strings.Repeat(" ", len(prefix)))
}

func writeMap(b *strings.Builder, v *state.View, width int) {
	if v.Map.Mode == mapnav.ModeRegion {
		b.WriteString(titleStyle.Render(v.Map.RegionName) + "\n")
		b.WriteString(dimStyle.Render(v.Map.RegionBackground) + "\n\n")
		for i, loc := range v.Map.Region {
			writeLocation(b, i, loc.Name, loc.Description, loc.Unlocked, width)
		}
		b.WriteString("\n" + promptStyle.Render("/back returns to the world map") + "\n")
		return
	}

	b.WriteString(titleStyle.Render("World Map") + "\n\n")
	for i, loc := range v.Map.World {
		writeLocation(b, i, loc.Name, loc.Description, loc.Unlocked, width)
	}
}

func writeLocation(b *strings.Builder, i int, name, desc string, unlocked bool, width int) {
	label := fmt.Sprintf("  %d) %s", i+1, name)
	if !unlocked {
		b.WriteString(lockedStyle.Render(label) + dimStyle.Render(" (locked)") + "\n")
		return
	}
	b.WriteString(choiceStyle.Render(label) + "\n")
	if desc != "" {
		b.WriteString(dimStyle.Render(wordwrap.String("     "+desc, width)) + "\n")
	}
}

func writeContext(b *strings.Builder, v *state.View, width int) {
	ctx := v.Context
	if ctx == nil {
		b.WriteString("Nowhere selected. Use /map to pick a location.\n")
		return
	}
	b.WriteString(titleStyle.Render(ctx.Name) + "  " + dimStyle.Render(ctx.Time) + "\n")
	b.WriteString(wordwrap.String(ctx.Description, width) + "\n\n")
	if len(ctx.Actions) == 0 {
		b.WriteString(dimStyle.Render("Nothing to do here.") + "\n")
	}
	for i, a := range ctx.Actions {
		label := fmt.Sprintf("  %d) %s", i+1, a.Name)
		if a.TimeCost > 0 {
			label += fmt.Sprintf(" [%d min]", a.TimeCost)
		}
		b.WriteString(choiceStyle.Render(label) + "\n")
		if a.Description != "" {
			b.WriteString(dimStyle.Render(wordwrap.String("     "+a.Description, width)) + "\n")
		}
	}
}

func writeInfo(b *strings.Builder, v *state.View) {
	if s := v.Info.Sheet; s != nil {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s, Level %d", s.Race, s.ClassName, s.Level)) + "\n")
		b.WriteString(fmt.Sprintf("HP %d/%d  AC %d  XP %d/%d (%.0f%%)\n\n", s.HP, s.MaxHP, s.AC, s.XP, s.XPToNextLevel, s.XPPercent))
		for _, st := range s.Stats {
			b.WriteString(fmt.Sprintf("  %-14s %3d (%+d)\n", st.Name, st.Value, st.Modifier))
		}
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render("Inventory") + "\n")
	if len(v.Info.Items) == 0 {
		b.WriteString(dimStyle.Render("  Empty") + "\n")
	}
	for _, e := range v.Info.Items {
		name := e.Item.Name
		if !e.Known {
			name = e.Slot.ItemID + " (unknown)"
		}
		b.WriteString(fmt.Sprintf("  %-20s x%d\n", name, e.Slot.Quantity))
	}
}

func writeMetadata(v *state.View, streaming bool) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("SESSION") + "\n\n")
	if v == nil {
		return content.String()
	}

	id := v.SessionID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	content.WriteString("ID: " + id + "\n")
	content.WriteString("Mode: " + string(v.Mode) + "\n")
	content.WriteString("Scene: " + v.SceneID + "\n")
	content.WriteString(fmt.Sprintf("Line: %d\n\n", v.Index+1))

	content.WriteString(fmt.Sprintf("Playback: %s\n", v.Playback.Mode))
	content.WriteString(fmt.Sprintf("Text speed: %.1fs\n", v.Settings.TextSpeed))
	content.WriteString(fmt.Sprintf("Auto speed: %.1fs\n", v.Settings.AutoPlaySpeed))
	if streaming {
		content.WriteString("Updates: live\n")
	} else {
		content.WriteString("Updates: polling\n")
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Enter: Next\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Esc: Quit\n")

	return content.String()
}

func writeVars(v *state.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Variables:") + "\n")
	if v == nil || len(v.Vars) == 0 {
		b.WriteString("No variables are set.\n")
		return b.String()
	}
	keys := make([]string, 0, len(v.Vars))
	for k := range v.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("• %s = %s\n", k, v.Vars[k].String()))
	}
	return b.String()
}

func writeSaves(v *state.View) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Save slots:") + "\n")
	if v == nil {
		return b.String()
	}
	for _, s := range v.Saves {
		if s.Empty {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  %2d  empty", s.Slot)) + "\n")
			continue
		}
		b.WriteString(fmt.Sprintf("  %2d  %s  %s\n", s.Slot, s.SceneID, s.Timestamp))
	}
	return b.String()
}

const helpText = `Commands:
• Enter          - Next line
• 1-9            - Pick a choice, location, or action
• /prev          - Previous line
• /auto, /skip   - Toggle auto-play or skip
• /save N        - Save to slot N
• /load N        - Load slot N
• /saves         - List save slots
• /scene ID      - Jump to a scene
• /map, /novel, /context, /info - Switch screens
• /back          - Back to the world map
• /textspeed S, /autospeed S - Speeds in seconds
• /vars          - Show variables
• /quit          - Quit`

func noticeStyle(level command.Level) lipgloss.Style {
	switch level {
	case command.LevelError:
		return errorStyle
	case command.LevelWarning:
		return warningStyle
	case command.LevelSuccess:
		return successStyle
	default:
		return dimStyle
	}
}

func (m ConsoleUI) sendIntent(in state.Intent) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		view, err := m.api.sendIntent(ctx, m.view.SessionID, in)
		return viewMsg{view, err}
	}
}

func (m ConsoleUI) fetchView() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		view, err := m.api.getView(ctx, m.view.SessionID)
		return viewMsg{view, err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sseClosedMsg{}
		}
		return sseMsg{ev}
	}
}

// maybePoll schedules a refresh while playback runs on the server and no
// event stream is delivering its steps.
func (m *ConsoleUI) maybePoll() tea.Cmd {
	if m.streaming || m.polling || m.view == nil {
		return nil
	}
	if !m.view.Playback.AutoPlay && !m.view.Playback.Skip {
		return nil
	}
	m.polling = true
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved progress will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(storyWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
