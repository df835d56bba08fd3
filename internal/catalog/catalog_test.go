package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sigma-chat/internal/transcript"
)

func openSeeded(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.sqlite"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	n, err := c.SeedDefault(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return c
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestBuildFTSQuery(t *testing.T) {
	got := buildFTSQuery(`iphone "pro" (max)`)
	want := `"iphone"* AND "pro"* AND "max"*`
	if got != want {
		t.Fatalf("unexpected fts query\nwant: %s\ngot:  %s", want, got)
	}
}

func TestTokenizeSearchTerms(t *testing.T) {
	got := tokenizeSearchTerms(`  Điện,   "Thoại"   (apple)  `)
	if len(got) != 3 || got[0] != "điện" || got[1] != "thoại" || got[2] != "apple" {
		t.Fatalf("unexpected tokens: %#v", got)
	}
}

func TestSearchFindsByNameAndKeyword(t *testing.T) {
	c := openSeeded(t)
	ctx := context.Background()

	got, err := c.Search(ctx, "iphone", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids(got))

	got, err = c.Search(ctx, "apple", 10)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"p1", "l1", "a1"}, ids(got))

	got, err = c.Search(ctx, "galaxy ultra", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"p2"}, ids(got))

	got, err = c.Search(ctx, "điện thoại", 10)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"p1", "p2", "p3"}, ids(got))
}

func TestSearchEmptyAndMissing(t *testing.T) {
	c := openSeeded(t)
	ctx := context.Background()

	got, err := c.Search(ctx, "   ", 10)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = c.Search(ctx, "tivi", 10)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSearchHonoursLimit(t *testing.T) {
	c := openSeeded(t)
	got, err := c.Search(context.Background(), "apple", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestGetAndNotFound(t *testing.T) {
	c := openSeeded(t)
	ctx := context.Background()

	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "iPhone 15 Pro Max 256GB", p.Name)
	require.Equal(t, "-14%", p.Discount)
	require.Contains(t, p.Keywords, "iphone")

	_, err = c.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestImportUpsertsAndKeepsOrder(t *testing.T) {
	c := openSeeded(t)
	ctx := context.Background()

	seed := `
products:
  - id: p1
    name: iPhone 15 Pro Max 512GB
    price: 35.990.000đ
  - id: w1
    name: Apple Watch Series 9
    keywords: [apple, watch]
`
	n, err := c.Import(ctx, strings.NewReader(seed))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	total, err := c.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, total)

	p, err := c.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "35.990.000đ", p.Price)

	list, err := c.List(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"p1", "p2", "p3", "l1", "a1", "w1"}, ids(list))

	got, err := c.Search(ctx, "watch", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"w1"}, ids(got))

	n, err = c.SeedDefault(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "a populated catalog is not reseeded")
}

func TestImportRejectsIncompleteProducts(t *testing.T) {
	c := openSeeded(t)
	_, err := c.Import(context.Background(), strings.NewReader("products:\n  - id: x\n"))
	require.Error(t, err)
}

func TestAttachmentsProjection(t *testing.T) {
	got := Attachments([]Product{{
		Attachment: transcript.Attachment{ID: "p1", Name: "Phone"},
		Category:   "điện thoại",
	}})
	require.Equal(t, []transcript.Attachment{{ID: "p1", Name: "Phone"}}, got)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.sqlite")
	c, err := Open(path, false)
	require.NoError(t, err)
	_, err = c.SeedDefault(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(path, false)
	require.NoError(t, err)
	n, err := c.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoError(t, c.Close())

	c, err = Open(path, true)
	require.NoError(t, err)
	defer c.Close()
	n, err = c.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
