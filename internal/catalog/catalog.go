// Package catalog defines the product data model and data access interfaces.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable is returned when the product store cannot be reached.
var ErrUnavailable = errors.New("catalog unavailable")

// Product is a single catalog record. Optional fields (category, tags,
// reviews) are empty rather than absent; images is always a list, possibly
// empty. Records are read-only snapshots for the duration of one request.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Price       float64  `json:"price"`
	Rating      float64  `json:"rating"`
	Sold        int64    `json:"sold"`
	Images      []string `json:"images"`
	Reviews     []string `json:"reviews,omitempty"`
}

// ImageRef pairs a product with its primary image URL, used to build the
// reverse image index.
type ImageRef struct {
	ProductID string
	URL       string
}

// Store provides read access to the product catalog.
type Store interface {
	// List returns the full catalog snapshot.
	List(ctx context.Context) ([]Product, error)

	// Categories returns the distinct leaf category names, used as the
	// taxonomy handed to constraint extraction.
	Categories(ctx context.Context) ([]string, error)

	// ImageRefs returns one (product, primary image URL) row per product
	// that has at least one image.
	ImageRefs(ctx context.Context) ([]ImageRef, error)
}

// NormalizeStrings coerces a raw JSON value into a list of strings. Store
// payloads are not trusted: the value may be a JSON array of strings, a bare
// string, null, or malformed. Anything that cannot be read as strings becomes
// an empty list. The operation is idempotent: a marshaled output normalizes
// back to itself.
func NormalizeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []string{}
		}
		return list
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}
		}
		return []string{single}
	}

	// Mixed array: salvage the string elements, drop the rest.
	var mixed []any
	if err := json.Unmarshal(raw, &mixed); err == nil {
		out := make([]string, 0, len(mixed))
		for _, v := range mixed {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	return []string{}
}
