package postgres

import (
	"context"
	"fmt"

	"github.com/smartshop/search/internal/catalog"
)

// ProductStore implements catalog.Store
type ProductStore struct {
	db *DB
}

// NewProductStore creates a new product store
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

// List returns the full catalog snapshot. The tags, images, and reviews
// columns are stored as jsonb and pass through catalog.NormalizeStrings, so
// legacy rows holding a bare string or junk come back as clean lists.
func (s *ProductStore) List(ctx context.Context) ([]catalog.Product, error) {
	query := `
		SELECT id, title, description, category, tags, price, rating, sold, images, reviews
		FROM products
		ORDER BY id
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var (
			p           catalog.Product
			category    *string
			tagsJSON    []byte
			imagesJSON  []byte
			reviewsJSON []byte
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &category, &tagsJSON,
			&p.Price, &p.Rating, &p.Sold, &imagesJSON, &reviewsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if category != nil {
			p.Category = *category
		}
		p.Tags = catalog.NormalizeStrings(tagsJSON)
		p.Images = catalog.NormalizeStrings(imagesJSON)
		p.Reviews = catalog.NormalizeStrings(reviewsJSON)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}

	return products, nil
}

// Categories returns the distinct non-empty category names.
func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category
		FROM products
		WHERE category IS NOT NULL AND category <> ''
		ORDER BY category
	`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}

	return categories, nil
}

// ImageRefs returns one row per product with the product's first image URL.
// Products without a usable image are skipped.
func (s *ProductStore) ImageRefs(ctx context.Context) ([]catalog.ImageRef, error) {
	query := `SELECT id, images FROM products ORDER BY id`
	rows, err := s.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	defer rows.Close()

	var refs []catalog.ImageRef
	for rows.Next() {
		var (
			id         string
			imagesJSON []byte
		)
		if err := rows.Scan(&id, &imagesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		images := catalog.NormalizeStrings(imagesJSON)
		if len(images) == 0 || images[0] == "" {
			continue
		}
		refs = append(refs, catalog.ImageRef{ProductID: id, URL: images[0]})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}

	return refs, nil
}

// Ensure ProductStore implements catalog.Store.
var _ catalog.Store = (*ProductStore)(nil)
