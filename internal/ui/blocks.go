package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sigma-chat/internal/markup"
)

var (
	headingStyles = []lipgloss.Style{
		lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("205")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		lipgloss.NewStyle().Bold(true).Italic(true),
	}
	boldStyle   = lipgloss.NewStyle().Bold(true)
	linkStyle   = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	bulletStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// RenderSpans styles inline spans. A link shows its URL after the text
// unless the two are identical.
func RenderSpans(spans []markup.Span) string {
	var b strings.Builder
	for _, s := range spans {
		switch s.Kind {
		case markup.SpanBold:
			b.WriteString(boldStyle.Render(s.Text))
		case markup.SpanLink:
			b.WriteString(linkStyle.Render(s.Text))
			if s.URL != "" && s.URL != s.Text {
				b.WriteString(" " + urlStyle.Render("("+s.URL+")"))
			}
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// RenderBlocks draws parsed blocks for a terminal of the given width.
func RenderBlocks(blocks []markup.Block, width int) string {
	if width < 20 {
		width = 20
	}
	wrap := lipgloss.NewStyle().Width(width)
	hanging := lipgloss.NewStyle().Width(width - 2)

	out := make([]string, 0, len(blocks))
	for _, blk := range blocks {
		switch blk.Kind {
		case markup.BlockHeading:
			level := blk.Level
			if level < 1 {
				level = 1
			}
			if level > len(headingStyles) {
				level = len(headingStyles)
			}
			out = append(out, wrap.Render(headingStyles[level-1].Render(markup.PlainText(blk.Spans))))
		case markup.BlockBullet:
			body := hanging.Render(RenderSpans(blk.Spans))
			out = append(out, lipgloss.JoinHorizontal(lipgloss.Top, bulletStyle.Render("• "), body))
		case markup.BlockTable:
			out = append(out, renderTable(blk, width))
		case markup.BlockBlank:
			out = append(out, "")
		default:
			out = append(out, wrap.Render(RenderSpans(blk.Spans)))
		}
	}
	return strings.Join(out, "\n")
}

func renderTable(blk markup.Block, width int) string {
	cols := len(blk.Header)
	for _, r := range blk.Rows {
		cols = max(cols, len(r))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorder).
		Headers(padCells(blk.Header, cols, boldStyle)...)
	for _, r := range blk.Rows {
		t = t.Row(padCells(r, cols, lipgloss.NewStyle())...)
	}
	if w := lipgloss.Width(t.String()); w > width {
		t = t.Width(width)
	}
	return t.String()
}

// padCells fills ragged rows so every row has the same number of columns.
func padCells(cells [][]markup.Span, cols int, style lipgloss.Style) []string {
	out := make([]string, cols)
	for i := range out {
		if i < len(cells) {
			out[i] = style.Render(RenderSpans(cells[i]))
		}
	}
	return out
}
