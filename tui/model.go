// Package tui is the terminal chat front end: a bubbletea program that shows
// the transcript, streams each reply fragment by fragment and lets the user
// pick the model and temperature.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
	"github.com/papercomputeco/ollachat/pkg/session"
)

const temperatureStep = 0.1

// Backend lists models and generates replies. *ollama.Client satisfies it.
type Backend interface {
	ListModels(ctx context.Context) []llm.ModelDescriptor
	session.Generator
}

type (
	// catalogMsg carries the selectable model names.
	catalogMsg struct{ names []string }

	// fragmentMsg carries one element of the reply stream.
	fragmentMsg struct {
		stream   <-chan llm.Fragment
		fragment llm.Fragment
	}

	// streamDoneMsg signals the reply stream was closed.
	streamDoneMsg struct{ stream <-chan llm.Fragment }
)

// Model is the bubbletea model of the chat screen.
type Model struct {
	backend  Backend
	session  *session.Session
	settings session.Settings
	logger   *zap.Logger

	models []string

	exchange  *session.Exchange
	stream    <-chan llm.Fragment
	cancel    context.CancelFunc
	cancelled bool
	partial   string

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool
	notice string
}

// New creates the chat model for sess, starting from settings.
func New(backend Backend, sess *session.Session, settings session.Settings, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textarea.New()
	input.Placeholder = "Ask something..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		backend:  backend,
		session:  sess,
		settings: settings,
		logger:   logger,
		models:   []string{settings.Model},
		keys:     defaultKeyMap(),
		help:     help.New(),
		input:    input,
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
}

// Init starts the cursor blink and fetches the catalog once.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.fetchCatalog())
}

func (m *Model) fetchCatalog() tea.Cmd {
	backend := m.backend
	fallback := m.settings.Model
	return func() tea.Msg {
		models := backend.ListModels(context.Background())
		return catalogMsg{names: ollama.SelectableModels(models, fallback)}
	}
}

// waitForFragment delivers the next element of the stream as one message, so
// the view is re-rendered once per fragment.
func waitForFragment(stream <-chan llm.Fragment) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-stream
		if !ok {
			return streamDoneMsg{stream: stream}
		}
		return fragmentMsg{stream: stream, fragment: f}
	}
}

// Update handles input and stream messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case catalogMsg:
		m.setModels(msg.names)
		return m, nil

	case fragmentMsg:
		// Fragments of an abandoned stream are dropped
		if m.exchange == nil || msg.stream != m.stream {
			return m, nil
		}
		m.partial = m.exchange.Add(msg.fragment)
		m.refresh()
		return m, waitForFragment(m.stream)

	case streamDoneMsg:
		if msg.stream == m.stream {
			m.finish()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.partial == "" {
			m.refresh()
		}
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.abort()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()

		case key.Matches(msg, m.keys.Cancel):
			m.abort()
			return m, nil

		case key.Matches(msg, m.keys.Clear):
			m.abort()
			m.session.Clear()
			m.reset()
			m.notice = "chat cleared"
			m.refresh()
			return m, nil

		case key.Matches(msg, m.keys.Model):
			m.nextModel()
			return m, nil

		case key.Matches(msg, m.keys.TempUp):
			m.adjustTemperature(temperatureStep)
			return m, nil

		case key.Matches(msg, m.keys.TempDown):
			m.adjustTemperature(-temperatureStep)
			return m, nil
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit sends the prompt in the input box.
func (m *Model) submit() tea.Cmd {
	if m.Busy() {
		return nil
	}

	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ex, err := m.session.Begin(ctx, prompt, m.settings.Model)
	if err != nil {
		cancel()
		m.notice = err.Error()
		return nil
	}

	m.exchange = ex
	m.cancel = cancel
	m.partial = ""
	m.notice = ""
	m.stream = m.backend.Generate(ctx, m.settings.Request(prompt))
	m.input.Reset()
	m.refresh()

	m.logger.Debug("prompt submitted", zap.String("model", m.settings.Model))

	return tea.Batch(waitForFragment(m.stream), m.spinner.Tick)
}

// abort cancels the in-flight generation. The stream closes and the partial
// reply is committed when streamDoneMsg arrives.
func (m *Model) abort() {
	if m.exchange == nil || m.cancel == nil {
		return
	}
	m.cancelled = true
	m.cancel()
}

// finish commits the reply once the stream is closed.
func (m *Model) finish() {
	if m.exchange == nil {
		return
	}
	if m.cancelled {
		m.exchange.Cancel(context.Canceled)
	}

	turn := m.exchange.Commit(context.Background())
	if turn.Failed() {
		m.notice = turn.Error
	}

	m.reset()
	m.refresh()
}

func (m *Model) reset() {
	if m.cancel != nil {
		m.cancel()
	}
	m.exchange = nil
	m.stream = nil
	m.cancel = nil
	m.cancelled = false
	m.partial = ""
}

// Busy reports whether a reply is streaming.
func (m *Model) Busy() bool {
	return m.exchange != nil
}

// Settings returns the current generation settings.
func (m *Model) Settings() session.Settings {
	return m.settings
}

// Models returns the selectable model names.
func (m *Model) Models() []string {
	return m.models
}

func (m *Model) setModels(names []string) {
	if len(names) == 0 {
		return
	}
	m.models = names

	for _, n := range names {
		if n == m.settings.Model {
			return
		}
	}
	m.settings.Model = names[0]
}

func (m *Model) nextModel() {
	if len(m.models) < 2 {
		return
	}
	for i, n := range m.models {
		if n == m.settings.Model {
			m.settings.Model = m.models[(i+1)%len(m.models)]
			return
		}
	}
	m.settings.Model = m.models[0]
}

func (m *Model) adjustTemperature(delta float64) {
	t := math.Round((m.settings.Temperature+delta)*10) / 10
	m.settings.Temperature = math.Max(0, math.Min(1, t))
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.input.SetWidth(width)
	m.help.Width = width

	vpHeight := height - lipgloss.Height(m.headerView()) - m.input.Height() - 3
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
		renderer = nil
	}
	m.renderer = renderer
	m.ready = true

	m.refresh()
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(m.transcriptView())
	m.viewport.GotoBottom()
}

func (m *Model) transcriptView() string {
	var b strings.Builder

	for _, turn := range m.session.Turns() {
		b.WriteString(m.turnView(turn))
		b.WriteString("\n")
	}

	if m.exchange != nil {
		b.WriteString(assistantStyle.Render("Assistant") + " " + dimStyle.Render(m.settings.Model) + "\n")
		if m.partial == "" {
			b.WriteString(m.spinner.View() + " thinking...\n")
		} else {
			b.WriteString(m.partial + "\n")
		}
	}

	return b.String()
}

func (m *Model) turnView(turn session.Turn) string {
	switch turn.Role {
	case llm.RoleUser:
		return userStyle.Render("You") + "\n" + turn.Content + "\n"
	default:
		header := assistantStyle.Render("Assistant") + " " + dimStyle.Render(turn.Model)
		if turn.Failed() && turn.Content == turn.Error {
			return header + "\n" + errorStyle.Render(turn.Content) + "\n"
		}

		body := m.renderMarkdown(turn.Content)
		if turn.Failed() {
			body += "\n" + errorStyle.Render(turn.Error)
		}
		return header + "\n" + body + "\n"
	}
}

func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) headerView() string {
	line := fmt.Sprintf("ollachat · %s · temperature %.1f", m.settings.Model, m.settings.Temperature)
	if m.width > 0 {
		line = ansi.Truncate(line, m.width-2, "…")
	}
	return headerStyle.Render(line)
}

// View renders the screen.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	status := m.help.View(m.keys)
	if m.notice != "" {
		status = errorStyle.Render(ansi.Truncate(m.notice, m.width, "…"))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.input.View(),
		status,
	)
}
