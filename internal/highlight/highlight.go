// Package highlight marks search matches inside already styled terminal
// text without breaking its escape sequences.
package highlight

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// CSI and OSC sequences; a match never spans one.
var escapeRe = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

type Match struct {
	Line    int
	Preview string
}

type Result struct {
	Text    string
	Count   int
	Matches []Match
}

// Apply wraps every case-insensitive occurrence of query in the visible text
// of input.
func Apply(input, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	var (
		out   strings.Builder
		res   Result
		lines = strings.Split(input, "\n")
	)
	for i, line := range lines {
		if i > 0 {
			out.WriteByte('\n')
		}
		marked, n := markLine(line, query, wrap)
		out.WriteString(marked)
		if n > 0 {
			res.Count += n
			res.Matches = append(res.Matches, Match{
				Line:    i,
				Preview: ansi.Truncate(strings.TrimSpace(ansi.Strip(line)), 60, "…"),
			})
		}
	}
	res.Text = out.String()
	return res
}

func markLine(line, query string, wrap func(string) string) (string, int) {
	var (
		out   strings.Builder
		total int
		pos   int
	)
	for _, loc := range escapeRe.FindAllStringIndex(line, -1) {
		seg, n := markPlain(line[pos:loc[0]], query, wrap)
		out.WriteString(seg)
		out.WriteString(line[loc[0]:loc[1]])
		total += n
		pos = loc[1]
	}
	seg, n := markPlain(line[pos:], query, wrap)
	out.WriteString(seg)
	return out.String(), total + n
}

// markPlain compares rune by rune with EqualFold so case folding that
// changes byte length (đ/Đ, ß) never misaligns the cut.
func markPlain(s, query string, wrap func(string) string) (string, int) {
	qn := utf8.RuneCountInString(query)
	if s == "" || utf8.RuneCountInString(s) < qn {
		return s, 0
	}

	var out strings.Builder
	count, last := 0, 0
	for i := 0; i < len(s); {
		end, ok := prefixEnd(s[i:], qn)
		if ok && strings.EqualFold(s[i:i+end], query) {
			out.WriteString(s[last:i])
			out.WriteString(wrap(s[i : i+end]))
			count++
			i += end
			last = i
			continue
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	if count == 0 {
		return s, 0
	}
	out.WriteString(s[last:])
	return out.String(), count
}

// prefixEnd returns the byte length of the first n runes of s.
func prefixEnd(s string, n int) (int, bool) {
	end := 0
	for k := 0; k < n; k++ {
		if end >= len(s) {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return end, true
}

// Cursor walks the matched lines of a Result, wrapping at both ends.
type Cursor struct {
	matches []Match
	idx     int
}

func NewCursor(r Result) *Cursor {
	return &Cursor{matches: r.Matches, idx: -1}
}

func (c *Cursor) Len() int { return len(c.matches) }

func (c *Cursor) Next() (Match, bool) {
	if len(c.matches) == 0 {
		return Match{}, false
	}
	c.idx = (c.idx + 1) % len(c.matches)
	return c.matches[c.idx], true
}

func (c *Cursor) Prev() (Match, bool) {
	if len(c.matches) == 0 {
		return Match{}, false
	}
	if c.idx <= 0 {
		c.idx = len(c.matches)
	}
	c.idx--
	return c.matches[c.idx], true
}

// Position is 1-based for display; 0 before the first move.
func (c *Cursor) Position() int { return c.idx + 1 }
