package markup

import (
	"reflect"
	"strings"
	"testing"
)

func TestParse_TableWithSeparator(t *testing.T) {
	got := Parse("|A|B|\n|-|-|\n|1|2|")
	want := []Block{{
		Kind:   BlockTable,
		Header: [][]Span{{Text("A")}, {Text("B")}},
		Rows:   [][][]Span{{{Text("1")}, {Text("2")}}},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("table mismatch:\ngot:  %#v\nwant: %#v", got, want)
	}
}

func TestParse_TableWithoutSeparatorUsesFirstRowAsHeader(t *testing.T) {
	got := Parse("Model | Price\niPhone | 29.990.000đ")
	if len(got) != 1 || got[0].Kind != BlockTable {
		t.Fatalf("expected one table block, got %#v", got)
	}
	if h := cellTexts(got[0].Header); !reflect.DeepEqual(h, []string{"Model", "Price"}) {
		t.Fatalf("unexpected header: %v", h)
	}
	if len(got[0].Rows) != 1 || !reflect.DeepEqual(cellTexts(got[0].Rows[0]), []string{"iPhone", "29.990.000đ"}) {
		t.Fatalf("unexpected rows: %#v", got[0].Rows)
	}
}

func TestParse_TableAlignedSeparator(t *testing.T) {
	got := Parse("| a | b |\n|:--|--:|\n| 1 | 2 |\n| 3 | 4 |")
	if len(got) != 1 {
		t.Fatalf("expected one block, got %d", len(got))
	}
	if len(got[0].Rows) != 2 {
		t.Fatalf("separator row should be dropped, got %d body rows", len(got[0].Rows))
	}
}

func TestParse_TableFlushedByNonTableLine(t *testing.T) {
	got := Parse("|x|y|\n|1|2|\nafter")
	if len(got) != 2 {
		t.Fatalf("expected table + paragraph, got %#v", got)
	}
	if got[0].Kind != BlockTable || got[1].Kind != BlockParagraph {
		t.Fatalf("unexpected kinds: %s, %s", got[0].Kind, got[1].Kind)
	}
	if PlainText(got[1].Spans) != "after" {
		t.Fatalf("unexpected paragraph: %q", PlainText(got[1].Spans))
	}
}

func TestParse_TableCellStartingWithDashIsNotBullet(t *testing.T) {
	got := Parse("| - item | x |")
	if len(got) != 1 || got[0].Kind != BlockTable {
		t.Fatalf("expected table, got %#v", got)
	}
	if cellTexts(got[0].Header)[0] != "- item" {
		t.Fatalf("unexpected first cell: %q", cellTexts(got[0].Header)[0])
	}
}

func TestParse_RaggedTableKeepsRows(t *testing.T) {
	got := Parse("|a|b|c|\n|1|\n|2|3|4|5|")
	if len(got) != 1 {
		t.Fatalf("expected one block, got %d", len(got))
	}
	if len(got[0].Rows) != 2 || len(got[0].Rows[0]) != 1 || len(got[0].Rows[1]) != 4 {
		t.Fatalf("ragged rows should be kept as-is: %#v", got[0].Rows)
	}
}

func TestParse_Heading(t *testing.T) {
	got := Parse("## Title")
	want := []Block{{Kind: BlockHeading, Level: 2, Spans: []Span{Text("Title")}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("heading mismatch:\ngot:  %#v\nwant: %#v", got, want)
	}
}

func TestParse_HeadingLevels(t *testing.T) {
	cases := []struct {
		in    string
		kind  BlockKind
		level int
	}{
		{"# one", BlockHeading, 1},
		{"#### four", BlockHeading, 4},
		{"##### five", BlockParagraph, 0},
		{"#nospace", BlockParagraph, 0},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		if len(got) != 1 || got[0].Kind != tc.kind || got[0].Level != tc.level {
			t.Fatalf("input=%q got=%#v want kind=%s level=%d", tc.in, got, tc.kind, tc.level)
		}
	}
}

func TestParse_Bullets(t *testing.T) {
	got := Parse("* one\n+ two\n  - **three**\n-four")
	kinds := blockKinds(got)
	want := []BlockKind{BlockBullet, BlockBullet, BlockBullet, BlockParagraph}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds mismatch: got=%v want=%v", kinds, want)
	}
	if !reflect.DeepEqual(got[2].Spans, []Span{Bold("three")}) {
		t.Fatalf("bullet spans not resolved: %#v", got[2].Spans)
	}
}

func TestParse_BoldLineIsNotBullet(t *testing.T) {
	got := Parse("**Note** read this")
	if len(got) != 1 || got[0].Kind != BlockParagraph {
		t.Fatalf("expected paragraph, got %#v", got)
	}
}

func TestParse_BlankLinesAreKept(t *testing.T) {
	got := Parse("a\r\n\r\nb")
	kinds := blockKinds(got)
	want := []BlockKind{BlockParagraph, BlockBlank, BlockParagraph}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds mismatch: got=%v want=%v", kinds, want)
	}
	if strings.Contains(PlainText(got[0].Spans), "\r") {
		t.Fatalf("CRLF not normalized: %q", PlainText(got[0].Spans))
	}
}

func TestParse_NonEmptyInputYieldsBlocks(t *testing.T) {
	inputs := []string{" ", "\n", "|", "||", "#", "* ", "[x](", "**", "| a\n"}
	for _, in := range inputs {
		if got := Parse(in); len(got) == 0 {
			t.Fatalf("input=%q produced no blocks", in)
		}
	}
	if got := Parse(""); len(got) != 0 {
		t.Fatalf("empty input should produce no blocks, got %#v", got)
	}
}

func TestParse_Idempotent(t *testing.T) {
	in := "# Hi\n\n* **bold** [l](http://x)\n|a|b|\n|-|-|\n|1|2|\ntext"
	first := Parse(in)
	second := Parse(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-parse differs:\n%#v\n%#v", first, second)
	}
}

func TestParse_StreamingPrefixesNeverPanic(t *testing.T) {
	in := "## Giá\n| Máy | Giá |\n|---|---|\n| iPhone | **29tr** |\n* xem [link](https://fptshop.com.vn)\n"
	for i := 0; i <= len(in); i++ {
		_ = Parse(in[:i])
	}
}

func cellTexts(cells [][]Span) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, PlainText(c))
	}
	return out
}

func blockKinds(blocks []Block) []BlockKind {
	out := make([]BlockKind, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Kind)
	}
	return out
}
