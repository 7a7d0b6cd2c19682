package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dop251/goja"
	"go.uber.org/zap/zapcore"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const scrollback = 200

type frameMsg time.Time

// replModel evaluates input in the realm and advances its frames. Update
// and View run on the goroutine that called Run, which owns the realm.
type replModel struct {
	session *session
	logs    *bytes.Buffer
	input   textinput.Model
	lines   []string
	history []string
	last    time.Time
	recall  int
	height  int
	frames  int
}

func newReplModel(s *session, logs *bytes.Buffer) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("> ")
	ti.Placeholder = "script"
	ti.Focus()
	return &replModel{
		session: s,
		logs:    logs,
		input:   ti,
		last:    time.Now(),
		height:  20,
	}
}

func (m *replModel) tick() tea.Cmd {
	return tea.Tick(m.session.cfg.frame(), func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit
		case "enter":
			src := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if src != "" {
				m.eval(src)
			}
			return m, nil
		case "up":
			if m.recall > 0 {
				m.recall--
				m.input.SetValue(m.history[m.recall])
				m.input.CursorEnd()
			}
			return m, nil
		case "down":
			if m.recall < len(m.history)-1 {
				m.recall++
				m.input.SetValue(m.history[m.recall])
			} else {
				m.recall = len(m.history)
				m.input.Reset()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-4, 1)

	case frameMsg:
		now := time.Time(msg)
		m.session.realm.Update(now.Sub(m.last))
		m.last = now
		m.frames++
		m.flushLogs()
		return m, m.tick()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *replModel) eval(src string) {
	m.history = append(m.history, src)
	m.recall = len(m.history)
	m.push(promptStyle.Render("> ") + src)

	v, err := m.session.realm.Eval("repl", src)
	m.flushLogs()
	if err != nil {
		m.push(errorStyle.Render(err.Error()))
		return
	}
	m.push(resultStyle.Render(describe(v)))
}

func (m *replModel) flushLogs() {
	if m.logs.Len() == 0 {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(m.logs.String(), "\n"), "\n") {
		m.push(logStyle.Render(line))
	}
	m.logs.Reset()
}

func (m *replModel) push(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > scrollback {
		m.lines = m.lines[len(m.lines)-scrollback:]
	}
}

func (m *replModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("jsbridge"))
	fmt.Fprintf(&b, " frame %d, %d timers\n\n", m.frames, m.session.realm.Timers().Len())

	lines := m.lines
	if len(lines) > m.height {
		lines = lines[len(lines)-m.height:]
	}
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter eval • ↑/↓ history • ctrl+c quit"))
	return b.String()
}

func describe(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if b, err := obj.MarshalJSON(); err == nil && obj.ClassName() != "Function" {
			return string(b)
		}
	}
	return v.String()
}

func runInteractive(ctx context.Context, cfg Config) error {
	logs := &bytes.Buffer{}
	logger, err := newLogger(cfg.LogLevel, zapcore.AddSync(logs))
	if err != nil {
		return err
	}
	s, err := newSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	m := newReplModel(s, logs)
	if cfg.Main != "" {
		if _, err := s.realm.Require(cfg.Main); err != nil {
			m.push(errorStyle.Render(err.Error()))
		}
		m.flushLogs()
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
