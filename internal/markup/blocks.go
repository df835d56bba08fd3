// Package markup turns the restricted chat markup (bold, links, headings,
// bullets, tables) into display blocks. It never fails: anything it does not
// recognize becomes a paragraph.
package markup

type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockBullet    BlockKind = "bullet"
	BlockTable     BlockKind = "table"
	BlockBlank     BlockKind = "blank"
	BlockParagraph BlockKind = "paragraph"
)

type SpanKind string

const (
	SpanText SpanKind = "text"
	SpanBold SpanKind = "bold"
	SpanLink SpanKind = "link"
)

type Span struct {
	Kind SpanKind `json:"kind"`
	Text string   `json:"text"`
	URL  string   `json:"url,omitempty"`
}

// Block is one structural unit. Level is set for headings, Spans for
// headings, bullets and paragraphs, Header and Rows for tables.
type Block struct {
	Kind   BlockKind  `json:"kind"`
	Level  int        `json:"level,omitempty"`
	Spans  []Span     `json:"spans,omitempty"`
	Header [][]Span   `json:"header,omitempty"`
	Rows   [][][]Span `json:"rows,omitempty"`
}

func Text(s string) Span { return Span{Kind: SpanText, Text: s} }

func Bold(s string) Span { return Span{Kind: SpanBold, Text: s} }

func Link(text, url string) Span { return Span{Kind: SpanLink, Text: text, URL: url} }

// PlainText flattens spans back to their visible text.
func PlainText(spans []Span) string {
	n := 0
	for _, s := range spans {
		n += len(s.Text)
	}
	buf := make([]byte, 0, n)
	for _, s := range spans {
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
