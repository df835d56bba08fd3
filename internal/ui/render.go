package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"sigma-chat/internal/config"
	"sigma-chat/internal/markup"
	"sigma-chat/internal/session"
	"sigma-chat/internal/transcript"
)

// renderer turns a session view into terminal text. Final agent messages are
// cached per mode and width; the streaming one is redrawn every time.
type renderer struct {
	mode    string
	width   int
	botName string
	locale  string
	glam    *glamour.TermRenderer
	cache   map[string]cachedMessage
}

// cachedMessage remembers the content it was drawn from; welcome messages
// keep their id while their text changes with the locale.
type cachedMessage struct {
	content string
	out     string
}

func newRenderer(mode, botName string) *renderer {
	return &renderer{mode: mode, botName: botName, cache: make(map[string]cachedMessage)}
}

func (r *renderer) setWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.glam = nil
}

func (r *renderer) setMode(mode string) {
	r.mode = mode
}

func (r *renderer) transcript(v session.View, spin string, selectedReply int) string {
	r.locale = v.Locale
	parts := make([]string, 0, len(v.Messages)+2)
	for _, msg := range v.Messages {
		parts = append(parts, r.message(msg))
	}
	if len(v.Suggestions) > 0 {
		parts = append(parts, renderSuggestions(v.Suggestions, selectedReply, r.width))
	}
	if v.Phase == session.PhaseAwaitingFirstChunk {
		parts = append(parts, typingStyle.Render(spin+" "+r.botName+" "+r.label("typing")))
	}
	return strings.Join(parts, "\n\n")
}

func (r *renderer) message(msg transcript.Message) string {
	if msg.Sender == transcript.SenderUser {
		header := userNameStyle.Render(r.label("you"))
		body := lipgloss.NewStyle().Width(r.contentWidth()).Render(sanitizeForDisplay(msg.Content))
		return lipgloss.JoinVertical(lipgloss.Right, header, userBubbleStyle.Render(body))
	}

	key := msg.ID + "|" + r.mode + "|" + strconv.Itoa(r.width)
	if msg.Final {
		if cached, ok := r.cache[key]; ok && cached.content == msg.Content {
			return cached.out
		}
	}

	var b strings.Builder
	b.WriteString(botNameStyle.Render(r.botName))
	b.WriteString("\n")
	b.WriteString(r.body(msg.Content))
	if !msg.Final {
		b.WriteString(cursorStyle.Render("▍"))
	}
	if len(msg.Attachments) > 0 {
		b.WriteString("\n")
		b.WriteString(renderCards(msg.Attachments, r.width))
	}
	out := b.String()
	if msg.Final {
		r.cache[key] = cachedMessage{content: msg.Content, out: out}
	}
	return out
}

func (r *renderer) body(content string) string {
	content = sanitizeForDisplay(content)
	width := r.contentWidth()
	switch r.mode {
	case config.RenderPlain:
		return lipgloss.NewStyle().Width(width).Render(content)
	case config.RenderGlamour:
		if g := r.glamourRenderer(); g != nil {
			if out, err := g.Render(content); err == nil {
				return strings.Trim(out, "\n")
			}
		}
		return RenderBlocks(markup.Parse(content), width)
	default:
		return RenderBlocks(markup.Parse(content), width)
	}
}

func (r *renderer) glamourRenderer() *glamour.TermRenderer {
	if r.glam != nil {
		return r.glam
	}
	g, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(config.DefaultGlamourStyle),
		glamour.WithWordWrap(r.contentWidth()),
	)
	if err != nil {
		return nil
	}
	r.glam = g
	return g
}

func (r *renderer) contentWidth() int {
	w := r.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

var labels = map[string]map[string]string{
	"vi": {"you": "Bạn", "typing": "đang trả lời..."},
	"en": {"you": "You", "typing": "is typing..."},
}

func (r *renderer) label(key string) string {
	if l, ok := labels[r.locale]; ok {
		return l[key]
	}
	return labels["vi"][key]
}

func renderSuggestions(replies []string, selected, width int) string {
	chips := make([]string, 0, len(replies))
	for i, reply := range replies {
		style := chipStyle
		if i == selected {
			style = chipActiveStyle
		}
		chips = append(chips, style.Render(reply))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(lipgloss.JoinHorizontal(lipgloss.Top, chips...))
}

// renderCards lays attachment cards out in rows that fit width.
func renderCards(items []transcript.Attachment, width int) string {
	const cardWidth = 28
	perRow := max(1, width/(cardWidth+3))

	rows := make([]string, 0, len(items)/perRow+1)
	for start := 0; start < len(items); start += perRow {
		end := min(start+perRow, len(items))
		cards := make([]string, 0, end-start)
		for _, a := range items[start:end] {
			cards = append(cards, renderCard(a, cardWidth))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(a transcript.Attachment, width int) string {
	lines := []string{cardTitleStyle.Render(ansi.Truncate(a.Name, width, "…"))}
	if a.Price != "" {
		price := priceStyle.Render(a.Price)
		if a.OldPrice != "" {
			price += " " + oldPriceStyle.Render(a.OldPrice)
		}
		if a.Discount != "" {
			price += " " + discountStyle.Render(a.Discount)
		}
		lines = append(lines, price)
	}
	if a.Description != "" {
		lines = append(lines, descStyle.Render(ansi.Truncate(a.Description, width, "…")))
	}
	return cardStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func sanitizeForDisplay(s string) string {
	s = stripEmbeddedImageData(s)
	return clampLongLines(s, 8000)
}

func stripEmbeddedImageData(s string) string {
	var b strings.Builder
	pos := 0
	for {
		i := strings.Index(s[pos:], "data:image/")
		if i < 0 {
			b.WriteString(s[pos:])
			break
		}
		start := pos + i
		b.WriteString(s[pos:start])

		rest := s[start:]
		markerIdx := strings.Index(rest, ";base64,")
		if markerIdx < 0 {
			b.WriteString("data:image/")
			pos = start + len("data:image/")
			continue
		}

		payloadStart := start + markerIdx + len(";base64,")
		j := payloadStart
		for j < len(s) && isBase64Byte(s[j]) {
			j++
		}
		fmt.Fprintf(&b, "[image data omitted: %d base64 chars]", j-payloadStart)
		pos = j
	}
	return b.String()
}

func isBase64Byte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '+' || c == '/' || c == '=':
		return true
	default:
		return false
	}
}

func clampLongLines(s string, limit int) string {
	if limit <= 0 || len(s) == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if len(line) <= limit {
			continue
		}
		lines[i] = ansi.Truncate(line, limit, "") + " … [" + strconv.Itoa(len(line)-limit) + " more chars]"
	}
	return strings.Join(lines, "\n")
}

var (
	botNameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userNameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userBubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	typingStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	cursorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	chipStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1).MarginRight(1)
	chipActiveStyle = chipStyle.BorderForeground(lipgloss.Color("205")).Bold(true)
	cardStyle       = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginRight(1)
	cardTitleStyle = lipgloss.NewStyle().Bold(true)
	priceStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	oldPriceStyle  = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("244"))
	discountStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	descStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)
