package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	dialog "github.com/evkarin/switchboard/core"
	"github.com/evkarin/switchboard/core/trigger"
	"github.com/muesli/reflow/wordwrap"
)

type consoleEventKind int

const (
	eventState consoleEventKind = iota
	eventInterim
	eventFinal
	eventReply
	eventDigit
	eventSummary
)

// consoleEvent carries engine activity into the bubbletea loop.
type consoleEvent struct {
	kind consoleEventKind
	text string
}

type consoleEventMsg consoleEvent

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("150"))
	agentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("219"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpStyle    = lipgloss.NewStyle().Faint(true).MarginTop(1)
)

type consoleModel struct {
	orchestrator *dialog.Orchestrator
	feed         *trigger.Feed
	events       <-chan consoleEvent

	viewport viewport.Model
	spinner  spinner.Model

	lines   []string
	state   string
	interim string
	offHook bool
	muted   bool

	width  int
	height int
	ready  bool
}

func newConsoleModel(orchestrator *dialog.Orchestrator, feed *trigger.Feed, events <-chan consoleEvent) consoleModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return consoleModel{
		orchestrator: orchestrator,
		feed:         feed,
		events:       events,
		spinner:      s,
		state:        dialog.StateIdle.String(),
	}
}

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.spinner.Tick)
}

func (m consoleModel) listen() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return consoleEventMsg(event)
	}
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		viewportHeight := msg.Height - 6
		if viewportHeight < 3 {
			viewportHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.refreshViewport()
		return m, nil

	case consoleEventMsg:
		m.handleEvent(consoleEvent(msg))
		m.refreshViewport()
		return m, m.listen()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m consoleModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "p":
		if !m.offHook {
			m.offHook = true
			m.feed.Emit(trigger.KindPickedUp)
			m.lines = append(m.lines, faintStyle.Render("-- picked up --"))
		}
	case "h":
		if m.offHook {
			m.offHook = false
			m.feed.Emit(trigger.KindHungUp)
			m.lines = append(m.lines, faintStyle.Render("-- hung up --"))
		}
	case "m":
		if m.muted {
			m.orchestrator.Unmute()
		} else {
			m.orchestrator.Mute()
		}
		m.muted = !m.muted
	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if m.offHook {
			m.feed.EmitDigit(int(key[0] - '0'))
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	m.refreshViewport()
	return m, nil
}

func (m *consoleModel) handleEvent(event consoleEvent) {
	switch event.kind {
	case eventState:
		m.state = event.text
	case eventInterim:
		m.interim = event.text
	case eventFinal:
		m.interim = ""
		m.lines = append(m.lines, userStyle.Render("you: ")+event.text)
	case eventReply:
		m.lines = append(m.lines, agentStyle.Render("agent: ")+event.text)
	case eventDigit:
		m.lines = append(m.lines, faintStyle.Render("-- dialed "+event.text+" --"))
	case eventSummary:
		m.lines = append(m.lines, summaryStyle.Render("summary: ")+event.text)
	}
}

func (m *consoleModel) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}

	content := strings.Join(m.lines, "\n")
	if m.interim != "" {
		content += "\n" + faintStyle.Render("... "+m.interim)
	}
	m.viewport.SetContent(wordwrap.String(content, width))
	m.viewport.GotoBottom()
}

func (m consoleModel) View() string {
	if !m.ready {
		return "starting..."
	}

	status := stateStyle.Render(m.state)
	if m.state == dialog.StateGenerating.String() {
		status = m.spinner.View() + " " + status
	}
	if m.muted {
		status += faintStyle.Render("  [muted]")
	}
	hook := "on hook"
	if m.offHook {
		hook = "off hook"
	}

	header := titleStyle.Render("switchboard") + "  " + faintStyle.Render(hook)
	statusLine := fmt.Sprintf("state: %s", status)
	help := helpStyle.Render("p pick up · h hang up · m mute · 0-9 dial · q quit")

	return strings.Join([]string{header, statusLine, m.viewport.View(), help}, "\n")
}
