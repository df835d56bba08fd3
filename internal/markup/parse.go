package markup

import (
	"regexp"
	"strings"
)

var (
	headingRe   = regexp.MustCompile(`^(#{1,4})\s+(.*)$`)
	bulletRe    = regexp.MustCompile(`^[*+-]\s+(.*)$`)
	separatorRe = regexp.MustCompile(`^:?-+:?$`)
)

// Parse is O(n) over the input and keeps no state between calls, so callers
// re-run it on every streamed fragment.
func Parse(text string) []Block {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	blocks := make([]Block, 0, len(lines))
	var table []string
	flush := func() {
		if len(table) == 0 {
			return
		}
		blocks = append(blocks, tableBlock(table))
		table = nil
	}

	for _, line := range lines {
		if isTableLine(line) {
			table = append(table, line)
			continue
		}
		flush()
		blocks = append(blocks, lineBlock(line))
	}
	flush()
	return blocks
}

func lineBlock(line string) Block {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Block{Kind: BlockBlank}
	}
	if m := headingRe.FindStringSubmatch(strings.TrimLeft(line, " \t")); m != nil {
		return Block{
			Kind:  BlockHeading,
			Level: len(m[1]),
			Spans: ResolveSpans(strings.TrimSpace(m[2])),
		}
	}
	if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
		return Block{Kind: BlockBullet, Spans: ResolveSpans(m[1])}
	}
	return Block{Kind: BlockParagraph, Spans: ResolveSpans(line)}
}

func isTableLine(line string) bool {
	if !strings.Contains(line, "|") {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(line), "|") {
		return true
	}
	return len(splitCells(line)) >= 2
}

func splitCells(line string) []string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "|")
	t = strings.TrimSuffix(t, "|")
	cells := strings.Split(t, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorRe.MatchString(c) {
			return false
		}
	}
	return true
}

// tableBlock treats row 0 as the header whether or not a separator row
// follows it. Ragged rows are kept with their own cell counts.
func tableBlock(lines []string) Block {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, splitCells(l))
	}

	body := rows[1:]
	if len(rows) >= 2 && isSeparatorRow(rows[1]) {
		body = rows[2:]
	}

	b := Block{Kind: BlockTable, Header: cellSpans(rows[0])}
	if len(body) > 0 {
		b.Rows = make([][][]Span, 0, len(body))
		for _, r := range body {
			b.Rows = append(b.Rows, cellSpans(r))
		}
	}
	return b
}

func cellSpans(cells []string) [][]Span {
	out := make([][]Span, 0, len(cells))
	for _, c := range cells {
		out = append(out, ResolveSpans(c))
	}
	return out
}
