package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"sigma-chat/internal/clipboard"
	"sigma-chat/internal/config"
	"sigma-chat/internal/export"
	"sigma-chat/internal/highlight"
	"sigma-chat/internal/session"
)

type Model struct {
	ctx      context.Context
	cfg      config.AppConfig
	session  *session.Session
	exporter *export.Exporter
	copier   clipboard.Copier
	log      *zap.Logger

	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	search   textinput.Model
	keys     keyMap
	render   *renderer

	width  int
	height int

	searchMode    bool
	searchQuery   string
	matches       *highlight.Cursor
	matchCount    int
	selectedReply int

	status string
	err    error
}

// exchangeMsg carries one event of an in-flight exchange back into Update,
// the only place the session is mutated.
type exchangeMsg struct {
	x  *session.Exchange
	ev session.Event
}

type exportMsg struct {
	path string
	err  error
}

type copyMsg struct {
	err error
}

func NewModel(ctx context.Context, cfg config.AppConfig, s *session.Session, exp *export.Exporter, log *zap.Logger) Model {
	if log == nil {
		log = zap.NewNop()
	}

	vp := viewport.New(60, 20)

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	in := textinput.New()
	in.Placeholder = cfg.Widget.Placeholder
	in.Prompt = "› "
	in.CharLimit = 2000
	in.Focus()

	search := textinput.New()
	search.Placeholder = "Search transcript..."
	search.Prompt = "/ "
	search.CharLimit = 256

	m := Model{
		ctx:      ctx,
		cfg:      cfg,
		session:  s,
		exporter: exp,
		copier:   clipboard.New(),
		log:      log,
		viewport: vp,
		help:     h,
		spinner:  sp,
		input:    in,
		search:   search,
		keys:     defaultKeys(),
		render:   newRenderer(cfg.Widget.RenderMode, cfg.Widget.BotName),
	}
	m.refresh(true)
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) resolveCmd(x *session.Exchange) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return exchangeMsg{x: x, ev: x.Resolve(ctx)}
	}
}

func nextCmd(x *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		return exchangeMsg{x: x, ev: x.Next()}
	}
}

func abandonCmd(x *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		x.Abandon()
		return nil
	}
}

func (m Model) exportCmd() tea.Cmd {
	if m.exporter == nil {
		return nil
	}
	v := m.session.View()
	exp := m.exporter
	return func() tea.Msg {
		path, err := exp.Export(v.ThreadID, v.Messages)
		return exportMsg{path: path, err: err}
	}
}

func (m Model) copyCmd() tea.Cmd {
	v := m.session.View()
	md := export.BuildTranscriptMarkdown(v.Messages, m.cfg.Widget.BotName)
	copier := m.copier
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyMsg{err: copier.Copy(ctx, md)}
	}
}

func (m *Model) submit(text string) tea.Cmd {
	x, ok := m.session.Submit(text)
	if !ok {
		return nil
	}
	m.input.SetValue("")
	m.selectedReply = 0
	m.status = ""
	m.err = nil
	m.refresh(true)
	return tea.Batch(m.resolveCmd(x), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh(true)

	case exchangeMsg:
		d, applied := m.session.Apply(msg.ev)
		if msg.ev.Kind == session.EventFailed && applied {
			m.err = msg.ev.Err
		}
		if d == session.Continue {
			cmds = append(cmds, nextCmd(msg.x))
		} else {
			cmds = append(cmds, abandonCmd(msg.x))
		}
		if applied {
			m.refresh(false)
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied transcript to clipboard"
		}

	case spinner.TickMsg:
		if m.session.Phase() == session.PhaseAwaitingFirstChunk {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			m.refresh(false)
		}

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Send):
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				text = m.currentSuggestion()
			}
			return m, m.submit(text)
		case key.Matches(msg, m.keys.NextReply):
			if n := len(m.session.View().Suggestions); n > 0 {
				m.selectedReply = (m.selectedReply + 1) % n
				m.refresh(false)
			}
			return m, nil
		case key.Matches(msg, m.keys.Reset):
			m.session.Reset()
			m.selectedReply = 0
			m.status = "New conversation"
			m.err = nil
			m.refresh(true)
			return m, nil
		case key.Matches(msg, m.keys.Mode):
			m.cycleMode()
			m.refresh(false)
			return m, nil
		case key.Matches(msg, m.keys.Locale):
			m.cycleLocale()
			m.refresh(false)
			return m, nil
		case key.Matches(msg, m.keys.Search):
			m.searchMode = true
			m.search.SetValue(m.searchQuery)
			m.search.CursorEnd()
			m.search.Focus()
			m.input.Blur()
			return m, nil
		case key.Matches(msg, m.keys.NextMatch):
			m.jumpToMatch(1)
			return m, nil
		case key.Matches(msg, m.keys.PrevMatch):
			m.jumpToMatch(-1)
			return m, nil
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
			return m, nil
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
			return m, nil
		case key.Matches(msg, m.keys.Export):
			return m, m.exportCmd()
		case key.Matches(msg, m.keys.Copy):
			return m, m.copyCmd()
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.search.SetValue("")
		m.search.Blur()
		m.input.Focus()
		m.refresh(false)
		return m, nil
	case "enter":
		m.searchMode = false
		m.search.Blur()
		m.input.Focus()
		m.searchQuery = strings.TrimSpace(m.search.Value())
		m.refresh(false)
		m.jumpToMatch(1)
		return m, nil
	}
	before := strings.TrimSpace(m.search.Value())
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := strings.TrimSpace(m.search.Value()); after != before {
		m.searchQuery = after
		m.refresh(false)
	}
	return m, cmd
}

func (m *Model) currentSuggestion() string {
	s := m.session.View().Suggestions
	if len(s) == 0 {
		return ""
	}
	if m.selectedReply < 0 || m.selectedReply >= len(s) {
		m.selectedReply = 0
	}
	return s[m.selectedReply]
}

var renderModes = []string{config.RenderLite, config.RenderGlamour, config.RenderPlain}

func (m *Model) cycleMode() {
	next := renderModes[0]
	for i, mode := range renderModes {
		if mode == m.render.mode {
			next = renderModes[(i+1)%len(renderModes)]
			break
		}
	}
	m.render.setMode(next)
	m.status = "Render mode: " + next
}

func (m *Model) cycleLocale() {
	locales := []string{m.cfg.Widget.Locale}
	extra := make([]string, 0, len(m.cfg.Widget.Locales))
	for l := range m.cfg.Widget.Locales {
		if l != m.cfg.Widget.Locale {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	locales = append(locales, extra...)

	current := m.session.View().Locale
	next := locales[0]
	for i, l := range locales {
		if l == current {
			next = locales[(i+1)%len(locales)]
			break
		}
	}
	m.session.SetLocale(next)
	m.status = "Locale: " + next
}

// refresh redraws the transcript. The viewport follows new output when it
// was already at the bottom, or always when follow is set.
func (m *Model) refresh(follow bool) {
	atBottom := m.viewport.AtBottom()
	oldOffset := m.viewport.YOffset

	m.render.setWidth(m.viewport.Width)
	content := m.render.transcript(m.session.View(), m.spinner.View(), m.selectedReply)

	if q := strings.TrimSpace(m.searchQuery); q != "" {
		res := highlight.Apply(content, q, func(s string) string {
			return searchMatchStyle.Render(s)
		})
		content = res.Text
		m.matches = highlight.NewCursor(res)
		m.matchCount = res.Count
	} else {
		m.matches = nil
		m.matchCount = 0
	}

	m.viewport.SetContent(content)
	if follow || atBottom {
		m.viewport.GotoBottom()
	} else {
		m.viewport.SetYOffset(m.clampViewportOffset(oldOffset))
	}
}

func (m *Model) jumpToMatch(delta int) {
	if m.matches == nil || m.matches.Len() == 0 {
		if m.searchQuery != "" {
			m.status = "No search matches in transcript"
		}
		return
	}
	var match highlight.Match
	if delta < 0 {
		match, _ = m.matches.Prev()
	} else {
		match, _ = m.matches.Next()
	}
	m.viewport.SetYOffset(m.clampViewportOffset(match.Line))
	m.status = fmt.Sprintf("Match %d/%d: %s", m.matches.Position(), m.matches.Len(), match.Preview)
}

func (m *Model) clampViewportOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	maxOffset := m.viewport.TotalLineCount() - m.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// status, input, help and the panel border
	bodyHeight := m.height - 1 - 3 - 1 - 2
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	m.viewport.Width = max(20, m.width-4)
	m.viewport.Height = bodyHeight
	m.input.Width = max(10, m.width-6)
	m.search.Width = max(10, m.width-6)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	body := panelStyle(!m.searchMode).Width(m.width - 2).Render(m.viewport.View())

	prompt := m.input.View()
	if m.searchMode {
		prompt = m.search.View()
	}
	inputBox := inputStyle.Width(m.width - 2).Render(prompt)

	helpView := m.help.View(m.keys)
	if !m.searchMode && m.searchQuery != "" {
		helpView = "search: " + m.searchQuery + "  " + helpView
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		inputBox,
		helpView,
	)
}

func (m Model) statusLine() string {
	v := m.session.View()
	status := fmt.Sprintf("%s  thread=%s  messages=%d  mode=%s  locale=%s",
		m.cfg.Widget.BotName,
		shorten(v.ThreadID, 8),
		len(v.Messages),
		m.render.mode,
		v.Locale,
	)
	switch v.Phase {
	case session.PhaseAwaitingFirstChunk:
		status += "  " + m.spinner.View() + " waiting"
	case session.PhaseStreaming:
		status += "  [streaming]"
	}
	if m.searchQuery != "" || m.searchMode {
		status += "  [search]"
		if strings.TrimSpace(m.searchQuery) != "" {
			status += fmt.Sprintf("  [matches %d]", m.matchCount)
		}
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + shorten(strings.TrimSpace(m.status), 80)
	}
	if m.err != nil {
		status += "  err=" + shorten(m.err.Error(), 60)
	}
	return statusStyle.Width(m.width).Render(status)
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	searchMatchStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("16")).
				Background(lipgloss.Color("220"))
	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)
)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39"))
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240"))
}

type keyMap struct {
	Send      key.Binding
	NextReply key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Search    key.Binding
	NextMatch key.Binding
	PrevMatch key.Binding
	Reset     key.Binding
	Mode      key.Binding
	Locale    key.Binding
	Export    key.Binding
	Copy      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NextReply: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next suggestion"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Search: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "prev match"),
		),
		Reset: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "new chat"),
		),
		Mode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "render mode"),
		),
		Locale: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "language"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "export markdown"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy transcript"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NextReply, k.Reset, k.Search, k.Mode, k.Export, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.NextReply, k.PageUp, k.PageDown},
		{k.Search, k.NextMatch, k.PrevMatch, k.Reset},
		{k.Mode, k.Locale, k.Export, k.Copy, k.Quit},
	}
}
