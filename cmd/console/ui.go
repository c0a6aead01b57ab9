package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/inferno-games/quantum-salvation/internal/handlers"
	"github.com/inferno-games/quantum-salvation/pkg/mission"
)

const PlaceHolderText = "Type a command (help for a list)..."

var titleCaser = cases.Title(language.English)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	client  *apiClient
	session *handlers.SessionResponse

	logViewport viewport.Model
	input       textinput.Model
	lines       []string
	ready       bool
	width       int
	height      int
	err         error
	loading     bool
	autoTick    bool
}

type sessionMsg struct {
	session *handlers.SessionResponse
	err     error
}

type actionMsg struct {
	command string
	result  *handlers.ActionResponse
	err     error
}

type autoTickMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2).
			PaddingRight(1)
)

func NewConsoleUI(client *apiClient, session *handlers.SessionResponse) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = PlaceHolderText
	ti.Focus()
	ti.CharLimit = 280

	ui := ConsoleUI{
		client:  client,
		session: session,
		input:   ti,
	}
	ui.lines = append(ui.lines,
		titleStyle.Render("QUANTUM SALVATION"),
		dimStyle.Render("Session "+session.ID),
		"")
	if session.Cinematic != nil {
		ui.lines = append(ui.lines, eventStyle.Render("Cinematic playing: "+session.Cinematic.ID))
	}
	return ui
}

func (m ConsoleUI) Init() tea.Cmd {
	return textinput.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logWidth := m.width * 2 / 3
		if !m.ready {
			m.logViewport = viewport.New(logWidth, m.height-4)
			m.ready = true
		} else {
			m.logViewport.Width = logWidth
			m.logViewport.Height = m.height - 4
		}
		m.input.Width = logWidth - 4
		m.refreshLog()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				break
			}
			m.appendLine(userStyle.Render("> " + line))
			if cmd := m.handleCommand(line); cmd != nil {
				m.loading = true
				cmds = append(cmds, cmd)
			}
		}

	case sessionMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.appendLine(errorStyle.Render("error: " + msg.err.Error()))
			break
		}
		m.noteTransitions(msg.session)
		m.session = msg.session

	case actionMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.appendLine(errorStyle.Render("error: " + msg.err.Error()))
			break
		}
		if !msg.result.Accepted {
			m.appendLine(warnStyle.Render("rejected: " + msg.command))
		}
		m.noteTransitions(msg.result.Session)
		m.session = msg.result.Session

	case autoTickMsg:
		if m.autoTick {
			cmds = append(cmds, m.tickCmd(60), scheduleAutoTick())
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleCommand parses one input line into an API call.
func (m *ConsoleUI) handleCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch verb {
	case "help":
		m.appendHelp()
		return nil

	case "quit", "exit":
		return tea.Quit

	case "goto":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "location_entered", Location: rest})

	case "take":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "item_collected", Item: rest})

	case "flag":
		if len(fields) < 3 {
			m.appendLine(errorStyle.Render("usage: flag <name> <value>"))
			return nil
		}
		return m.actionCmd(line, &handlers.ActionRequest{Type: "flag_set", Flag: fields[1], Value: parseValue(fields[2])})

	case "choose":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "dialogue_choice", Choice: rest})

	case "mission":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("usage: mission start <id> | done | fail"))
			return nil
		}
		switch fields[1] {
		case "start":
			if len(fields) < 3 {
				m.appendLine(errorStyle.Render("usage: mission start <id>"))
				return nil
			}
			return m.actionCmd(line, &handlers.ActionRequest{Type: "mission_started", Mission: fields[2]})
		case "done":
			return m.actionCmd(line, &handlers.ActionRequest{Type: "mission_completed"})
		case "fail":
			return m.actionCmd(line, &handlers.ActionRequest{Type: "mission_failed"})
		}
		m.appendLine(errorStyle.Render("usage: mission start <id> | done | fail"))
		return nil

	case "objective":
		if len(fields) < 3 {
			m.appendLine(errorStyle.Render("usage: objective <mission> <objective>"))
			return nil
		}
		return m.actionCmd(line, &handlers.ActionRequest{Type: "objective_completed", Mission: fields[1], Objective: fields[2]})

	case "clue":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "clue_discovered", Clue: rest})

	case "note":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "note_added", Note: rest})

	case "lore":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("usage: lore <id> [title]"))
			return nil
		}
		title := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		return m.actionCmd(line, &handlers.ActionRequest{Type: "lore_discovered", Lore: fields[1], Title: title})

	case "evidence":
		if len(fields) < 2 {
			m.appendLine(errorStyle.Render("usage: evidence <id> [title]"))
			return nil
		}
		title := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		return m.actionCmd(line, &handlers.ActionRequest{Type: "evidence_collected", Evidence: fields[1], Title: title})

	case "play":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "cinematic_played", Cinematic: rest})

	case "skip":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "cinematic_skipped"})

	case "pause":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "cinematic_pause_toggled"})

	case "chapter":
		return m.actionCmd(line, &handlers.ActionRequest{Type: "chapter_completed", Chapter: rest})

	case "wait":
		seconds := 60.0
		if len(fields) > 1 {
			if v, err := strconv.ParseFloat(fields[1], 64); err == nil && v > 0 {
				seconds = v
			}
		}
		return m.tickCmd(seconds)

	case "auto":
		m.autoTick = !m.autoTick
		if m.autoTick {
			m.appendLine(dimStyle.Render("auto-tick on: one minute of story time per second"))
			return scheduleAutoTick()
		}
		m.appendLine(dimStyle.Render("auto-tick off"))
		return nil

	case "status":
		return m.refreshCmd()
	}

	m.appendLine(errorStyle.Render("unknown command: " + verb + " (try help)"))
	return nil
}

func (m *ConsoleUI) actionCmd(command string, req *handlers.ActionRequest) tea.Cmd {
	id := m.session.ID
	client := m.client
	return func() tea.Msg {
		result, err := client.sendAction(id, req)
		return actionMsg{command: command, result: result, err: err}
	}
}

func (m *ConsoleUI) tickCmd(seconds float64) tea.Cmd {
	id := m.session.ID
	client := m.client
	return func() tea.Msg {
		session, err := client.tick(id, seconds)
		return sessionMsg{session: session, err: err}
	}
}

func (m *ConsoleUI) refreshCmd() tea.Cmd {
	id := m.session.ID
	client := m.client
	return func() tea.Msg {
		session, err := client.getSession(id)
		return sessionMsg{session: session, err: err}
	}
}

func scheduleAutoTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return autoTickMsg{}
	})
}

// noteTransitions logs the interesting differences between the previous and
// next session views.
func (m *ConsoleUI) noteTransitions(next *handlers.SessionResponse) {
	prev := m.session
	if next == nil || prev == nil {
		return
	}

	if next.Chapter != prev.Chapter {
		m.appendLine(eventStyle.Render("Chapter: " + titleCaser.String(strings.ReplaceAll(string(next.Chapter), "_", " "))))
	}
	if prev.ActiveMission == nil && next.ActiveMission != nil {
		m.appendLine(eventStyle.Render("Mission started: " + next.ActiveMission.Name))
	}
	if prev.ActiveMission != nil && next.ActiveMission == nil {
		m.appendLine(eventStyle.Render("Mission over: " + prev.ActiveMission.Name))
	}
	if prev.Cinematic == nil && next.Cinematic != nil {
		m.appendLine(eventStyle.Render("Cinematic playing: " + next.Cinematic.ID))
	}
	if prev.Cinematic != nil && next.Cinematic == nil {
		m.appendLine(eventStyle.Render("Cinematic finished: " + prev.Cinematic.ID))
	}
	if next.Cinematic != nil && next.Cinematic.PendingDecision != "" &&
		(prev.Cinematic == nil || prev.Cinematic.PendingDecision != next.Cinematic.PendingDecision) {
		m.appendLine(warnStyle.Render("Decision required: " + next.Cinematic.PendingDecision + " (choose <id>)"))
	}
	if next.World.TimeRemaining <= 0 && prev.World.TimeRemaining > 0 {
		m.appendLine(errorStyle.Render("The clock has run out."))
	}
	if next.EndingPath != prev.EndingPath && next.EndingPath != "" {
		m.appendLine(dimStyle.Render("Path: " + string(next.EndingPath)))
	}
}

func (m *ConsoleUI) appendHelp() {
	m.appendLine(dimStyle.Render(strings.Join([]string{
		"goto <location>        enter a location",
		"take <item>            collect an item",
		"flag <name> <value>    set a story flag",
		"choose <id>            answer a pending decision",
		"mission start <id>     start a mission (done/fail to end it)",
		"objective <m> <o>      complete an objective by hand",
		"clue <id>              record a clue",
		"lore <id> [title]      discover lore",
		"evidence <id> [title]  collect evidence",
		"note <text>            add a mission note",
		"play/skip/pause        control cinematics",
		"chapter <id>           complete a chapter",
		"wait [seconds]         advance story time",
		"auto                   toggle 1 min/s auto advance",
		"status                 refresh the panel",
	}, "\n")))
}

func (m *ConsoleUI) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refreshLog()
}

func (m *ConsoleUI) refreshLog() {
	if !m.ready {
		return
	}
	wrapped := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		wrapped = append(wrapped, wordwrap.String(l, m.logViewport.Width-2))
	}
	m.logViewport.SetContent(strings.Join(wrapped, "\n"))
	m.logViewport.GotoBottom()
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Loading..."
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.logViewport.View(),
		"",
		m.input.View(),
	)

	right := metaPanelStyle.Width(m.width - m.logViewport.Width).Render(m.metaPanel())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// metaPanel renders the world status sidebar.
func (m ConsoleUI) metaPanel() string {
	s := m.session
	var b strings.Builder

	b.WriteString(titleStyle.Render("WORLD") + "\n")
	b.WriteString(labelStyle.Render("Chapter: ") + titleCaser.String(strings.ReplaceAll(string(s.Chapter), "_", " ")) + "\n")
	b.WriteString(labelStyle.Render("Severity: ") + fmt.Sprintf("%.1f%%", s.World.PandemicSeverity) + "\n")
	b.WriteString(labelStyle.Render("Research: ") + fmt.Sprintf("%.1f%%", s.World.ResearchProgress) + "\n")
	b.WriteString(labelStyle.Render("Stability: ") + fmt.Sprintf("%.1f%%", s.World.QuantumStabilization) + "\n")
	b.WriteString(labelStyle.Render("Time left: ") + formatDuration(s.World.TimeRemaining) + "\n")
	b.WriteString(labelStyle.Render("Progress: ") + fmt.Sprintf("%.0f%%", s.MainProgress) + "\n")
	if s.EndingPath != "" {
		b.WriteString(labelStyle.Render("Path: ") + string(s.EndingPath) + "\n")
	}
	b.WriteString(labelStyle.Render("Ending: ") + string(s.CurrentEnding) + "\n")

	if am := s.ActiveMission; am != nil {
		b.WriteString("\n" + titleStyle.Render("MISSION") + "\n")
		b.WriteString(titleCaser.String(am.Name) + fmt.Sprintf(" (%d%%)\n", am.Progress))
		if am.TimeRemaining >= 0 {
			b.WriteString(labelStyle.Render("Timer: ") + formatDuration(am.TimeRemaining) + "\n")
		}
		ids := make([]string, 0, len(am.Objectives))
		for id := range am.Objectives {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			mark := "[ ]"
			if am.Objectives[mission.ObjectiveID(id)] {
				mark = "[x]"
			}
			b.WriteString(dimStyle.Render(mark+" "+id) + "\n")
		}
	}

	if c := s.Cinematic; c != nil {
		b.WriteString("\n" + titleStyle.Render("CINEMATIC") + "\n")
		b.WriteString(c.ID + fmt.Sprintf(" (scene %d)", c.SceneIndex+1) + "\n")
		if c.Paused {
			b.WriteString(warnStyle.Render("paused") + "\n")
		}
		if c.PendingDecision != "" {
			b.WriteString(warnStyle.Render("decision: "+c.PendingDecision) + "\n")
		}
	}

	if m.loading {
		b.WriteString("\n" + dimStyle.Render("..."))
	}
	return b.String()
}

// parseValue keeps flag values typed: bools and numbers stay bools and
// numbers, everything else is a string.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "expired"
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	min := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm", h, min)
	}
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", min, sec)
}
