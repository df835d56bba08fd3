// Package catalog stores the products the agent can attach to an answer,
// in SQLite with full-text search where the driver supports FTS5.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"sigma-chat/internal/transcript"
)

var ErrNotFound = errors.New("product not found")

//go:embed seed.yaml
var defaultSeed []byte

type Product struct {
	transcript.Attachment `yaml:",inline"`
	Category              string   `yaml:"category,omitempty" json:"category,omitempty"`
	Keywords              []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

type Seed struct {
	Products []Product `yaml:"products"`
}

type Catalog struct {
	db         *sql.DB
	ftsEnabled bool
	mu         sync.Mutex
}

// Open opens or creates the catalog at dbPath. reset removes the file
// first.
func Open(dbPath string, reset bool) (*Catalog, error) {
	if reset {
		_ = os.Remove(dbPath)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) FTSEnabled() bool {
	return c.ftsEnabled
}

func (c *Catalog) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price TEXT,
			old_price TEXT,
			discount TEXT,
			image_url TEXT,
			description TEXT,
			category TEXT,
			keywords TEXT,
			position INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return c.ensureFTSTable()
}

func (c *Catalog) ensureFTSTable() error {
	var sqlDef string
	err := c.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'products_fts'`).Scan(&sqlDef)
	if err == nil {
		lower := strings.ToLower(sqlDef)
		c.ftsEnabled = strings.Contains(lower, "virtual table") && strings.Contains(lower, "fts5")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("inspect products_fts table: %w", err)
	}

	_, err = c.db.Exec(`CREATE VIRTUAL TABLE products_fts USING fts5(
		id UNINDEXED,
		name,
		description,
		category,
		keywords
	);`)
	if err == nil {
		c.ftsEnabled = true
		return nil
	}
	if !strings.Contains(strings.ToLower(err.Error()), "no such module: fts5") {
		return fmt.Errorf("create products_fts: %w", err)
	}

	// sqlite builds without FTS5 search the products table with LIKE.
	c.ftsEnabled = false
	return nil
}

// Upsert inserts or replaces products, keeping their order for unranked
// listings.
func (c *Catalog) Upsert(ctx context.Context, products ...Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM products`).Scan(&next); err != nil {
		return fmt.Errorf("read position: %w", err)
	}

	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("upsert product %q: id and name are required", p.ID)
		}
		next++
		keywords := strings.ToLower(strings.Join(p.Keywords, " "))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, price, old_price, discount, image_url, description, category, keywords, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				price = excluded.price,
				old_price = excluded.old_price,
				discount = excluded.discount,
				image_url = excluded.image_url,
				description = excluded.description,
				category = excluded.category,
				keywords = excluded.keywords
		`, p.ID, p.Name, p.Price, p.OldPrice, p.Discount, p.ImageURL, p.Description, p.Category, keywords, next); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		if !c.ftsEnabled {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM products_fts WHERE id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear fts row %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products_fts (id, name, description, category, keywords) VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Description, p.Category, keywords); err != nil {
			return fmt.Errorf("index product %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Import reads a YAML seed and upserts its products. It returns the number
// of products read.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (int, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("decode catalog seed: %w", err)
	}
	if err := c.Upsert(ctx, seed.Products...); err != nil {
		return 0, err
	}
	return len(seed.Products), nil
}

func (c *Catalog) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()
	return c.Import(ctx, f)
}

// SeedDefault loads the bundled demo products when the catalog is empty.
func (c *Catalog) SeedDefault(ctx context.Context) (int, error) {
	n, err := c.Count(ctx)
	if err != nil || n > 0 {
		return 0, err
	}
	return c.Import(ctx, strings.NewReader(string(defaultSeed)))
}

func (c *Catalog) Count(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := c.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products p WHERE p.id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get %s: %w", id, err)
	}
	return p, nil
}

// List returns products in import order.
func (c *Catalog) List(ctx context.Context, limit int) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products p ORDER BY p.position, p.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows)
}

// Search matches every term of query as a prefix, best matches first. An
// empty query returns nothing.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	if len(tokenizeSearchTerms(query)) == 0 {
		return nil, nil
	}

	if c.ftsEnabled {
		rows, err := c.searchFTS(ctx, query, limit)
		if err == nil {
			return collect(rows)
		}
		fallback, fbErr := c.searchLike(ctx, query, limit)
		if fbErr != nil {
			return nil, fmt.Errorf("search products (fts and fallback failed): fts=%w, fallback=%v", err, fbErr)
		}
		return collect(fallback)
	}
	rows, err := c.searchLike(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

const productColumns = `p.id, p.name, COALESCE(p.price, ''), COALESCE(p.old_price, ''), COALESCE(p.discount, ''),
	COALESCE(p.image_url, ''), COALESCE(p.description, ''), COALESCE(p.category, ''), COALESCE(p.keywords, '')`

func (c *Catalog) searchFTS(ctx context.Context, query string, limit int) (*sql.Rows, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, fmt.Errorf("empty fts query")
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products_fts
		JOIN products p ON p.id = products_fts.id
		WHERE products_fts MATCH ?
		ORDER BY products_fts.rank, p.position
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("fts query failed: %w", err)
	}
	return rows, nil
}

func (c *Catalog) searchLike(ctx context.Context, query string, limit int) (*sql.Rows, error) {
	terms := tokenizeSearchTerms(query)

	var b strings.Builder
	b.WriteString(`SELECT ` + productColumns + ` FROM products p WHERE `)
	args := make([]any, 0, 4*len(terms)+1)
	for idx, term := range terms {
		if idx > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(`(LOWER(p.name) LIKE ? OR LOWER(COALESCE(p.description, '')) LIKE ?
			OR LOWER(COALESCE(p.category, '')) LIKE ? OR COALESCE(p.keywords, '') LIKE ?)`)
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}
	b.WriteString(` ORDER BY p.position, p.id LIMIT ?`)
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("like query failed: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (Product, error) {
	var (
		p        Product
		keywords string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Price, &p.OldPrice, &p.Discount, &p.ImageURL, &p.Description, &p.Category, &keywords)
	if err != nil {
		return Product{}, err
	}
	p.Keywords = strings.Fields(keywords)
	return p, nil
}

func collect(rows *sql.Rows) ([]Product, error) {
	defer rows.Close()
	out := make([]Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return out, nil
}

func Attachments(products []Product) []transcript.Attachment {
	out := make([]transcript.Attachment, 0, len(products))
	for _, p := range products {
		out = append(out, p.Attachment)
	}
	return out
}

func buildFTSQuery(raw string) string {
	parts := tokenizeSearchTerms(raw)
	if len(parts) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ReplaceAll(p, `"`, "")
		if p == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf(`"%s"*`, p))
	}
	return strings.Join(quoted, " AND ")
}

func tokenizeSearchTerms(raw string) []string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "`\"'.,:;!?()[]{}<>|")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
