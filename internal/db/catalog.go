package db

import (
	"context"
	"fmt"
	"strings"

	"imposter/internal/words"
)

// UpsertCategory stores a category and adds any of its words not yet present.
func (d *DB) UpsertCategory(ctx context.Context, cat words.Category) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, cat.ID, cat.Name)
	if err != nil {
		return fmt.Errorf("upserting category %s: %w", cat.ID, err)
	}

	for _, w := range cat.Words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO words (category_id, word) VALUES ($1, $2)
			ON CONFLICT (category_id, word) DO NOTHING
		`, cat.ID, w)
		if err != nil {
			return fmt.Errorf("inserting word into %s: %w", cat.ID, err)
		}
	}
	return tx.Commit()
}

// Categories returns every category with its words, ordered by id.
func (d *DB) Categories(ctx context.Context) ([]words.Category, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(w.word, '')
		FROM categories c
		LEFT JOIN words w ON w.category_id = c.id
		ORDER BY c.id, w.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []words.Category
	for rows.Next() {
		var id, name, word string
		if err := rows.Scan(&id, &name, &word); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		if len(cats) == 0 || cats[len(cats)-1].ID != id {
			cats = append(cats, words.Category{ID: id, Name: name})
		}
		if word != "" {
			last := &cats[len(cats)-1]
			last.Words = append(last.Words, word)
		}
	}
	return cats, rows.Err()
}

// SeedCatalog loads cats into an empty catalog. It reports whether anything
// was written.
func (d *DB) SeedCatalog(ctx context.Context, cats []words.Category) (bool, error) {
	var count int
	if err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return false, fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	for _, cat := range cats {
		if err := d.UpsertCategory(ctx, cat); err != nil {
			return false, err
		}
	}
	d.log.Info().Int("categories", len(cats)).Msg("seeded word catalog")
	return true, nil
}
