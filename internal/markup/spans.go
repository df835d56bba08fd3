package markup

import "regexp"

// Bold and link alternatives are matched in one pass so occurrences never
// overlap. Bold content is not re-scanned.
var inlineRe = regexp.MustCompile(`\*\*(.+?)\*\*|\[([^\]\n]+)\]\(([^)\s]+)\)`)

func ResolveSpans(line string) []Span {
	if line == "" {
		return nil
	}
	matches := inlineRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return []Span{Text(line)}
	}

	out := make([]Span, 0, len(matches)*2+1)
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			out = append(out, Text(line[pos:m[0]]))
		}
		switch {
		case m[2] >= 0:
			out = append(out, Bold(line[m[2]:m[3]]))
		case m[4] >= 0:
			out = append(out, Link(line[m[4]:m[5]], line[m[6]:m[7]]))
		}
		pos = m[1]
	}
	if pos < len(line) {
		out = append(out, Text(line[pos:]))
	}
	return out
}
