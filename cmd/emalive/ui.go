package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/chat"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const (
	levelRefresh = 100 * time.Millisecond
	meterWidth   = 20
	// chrome is the number of lines around the chat viewport.
	chrome = 7
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	modelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	sourceStyle = lipgloss.NewStyle().Faint(true)
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

type eventMsg struct{ event events.Event }

type levelTickMsg struct{}

type actionDoneMsg struct{}

type model struct {
	ctx    context.Context
	client *orchestration.Client
	events <-chan events.Event

	input    textinput.Model
	chatView viewport.Model
	width    int

	status orchestration.Status
	inLvl  float64
	outLvl float64
}

func newModel(ctx context.Context, client *orchestration.Client, eventsCh <-chan events.Event) model {
	input := textinput.New()
	input.Placeholder = "Ask something, Enter to send"
	input.Focus()

	return model{
		ctx:      ctx,
		client:   client,
		events:   eventsCh,
		input:    input,
		chatView: viewport.New(80, 20),
		width:    80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.events),
		tickLevels(),
		m.run(m.client.Start),
	)
}

func waitForEvent(eventsCh <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-eventsCh
		if !ok {
			return nil
		}
		return eventMsg{event: event}
	}
}

func tickLevels() tea.Cmd {
	return tea.Tick(levelRefresh, func(time.Time) tea.Msg { return levelTickMsg{} })
}

// run executes a client action off the UI goroutine. Failures surface as
// status events.
func (m model) run(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = action(m.ctx)
		return actionDoneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		m.chatView.Width = msg.Width
		m.chatView.Height = max(msg.Height-chrome, 3)
		m.refreshChat()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+r":
			return m, m.run(m.client.StartRecording)
		case "ctrl+s":
			m.client.StopRecording()
			m.status = m.client.Status()
			return m, nil
		case "ctrl+n":
			return m, m.run(m.client.Reset)
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m, m.run(func(ctx context.Context) error { return m.client.SendChat(ctx, text) })
		}

	case eventMsg:
		switch msg.event.(type) {
		case events.ChatMessageUpdated, events.ChatMessageFinal:
			m.refreshChat()
		}
		m.status = m.client.Status()
		cmds = append(cmds, waitForEvent(m.events))

	case levelTickMsg:
		m.inLvl = m.client.InputGain().Level()
		if gain := m.client.OutputGain(); gain != nil {
			m.outLvl = gain.Level()
		}
		cmds = append(cmds, tickLevels())

	case actionDoneMsg:
		m.status = m.client.Status()
		m.refreshChat()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) refreshChat() {
	m.chatView.SetContent(renderHistory(m.client.ChatHistory(), max(m.width-2, 10)))
	m.chatView.GotoBottom()
}

func renderHistory(history []chat.Message, width int) string {
	var b strings.Builder
	for _, message := range history {
		label := userStyle.Render("You")
		if message.Role == chat.RoleModel {
			label = modelStyle.Render("Model")
		}
		text := message.Text
		if message.Pending && text == "" {
			text = "..."
		}

		b.WriteString(label + "\n")
		b.WriteString(wordwrap.String(text, width) + "\n")
		for i, source := range message.Sources {
			line := fmt.Sprintf("  [%d] %s <%s>", i+1, source.Title, source.URI)
			b.WriteString(sourceStyle.Render(wordwrap.String(line, width)) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) View() string {
	var statusLine string
	if m.status.Error != "" {
		statusLine = errorStyle.Render(m.status.Error)
	} else {
		statusLine = statusStyle.Render(m.status.Status)
	}

	meters := fmt.Sprintf("mic %s  out %s", meter(m.inLvl), meter(m.outLvl))
	help := helpStyle.Render("ctrl+r record • ctrl+s stop • ctrl+n reset • enter send • esc quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("ema live"),
		statusLine,
		meters,
		m.chatView.View(),
		m.input.View(),
		help,
	)
}

// meter renders an RMS level on a logarithmic scale from -60 dBFS to 0.
func meter(level float64) string {
	filled := 0
	if level > 0 {
		db := 20 * math.Log10(level)
		filled = int(math.Round((db + 60) / 60 * meterWidth))
	}
	filled = min(max(filled, 0), meterWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(" ", meterWidth-filled) + "]"
}
