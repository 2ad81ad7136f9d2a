package search

import (
	"sort"
	"strings"

	"github.com/smartshop/search/internal/catalog"
)

// urgentLimit caps the candidate set for urgent queries: the best sellers are
// kept and everything else is cut before feature filters run.
const urgentLimit = 20

// Filter applies constraints to a catalog snapshot, AND-ing every present
// field. The output order carries no meaning. An empty result is a value,
// never an error.
func Filter(products []catalog.Product, c Constraints) []catalog.Product {
	keywords := strings.Fields(strings.ToLower(c.ProductType))
	brand := strings.ToLower(strings.TrimSpace(c.BrandPreference))

	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if !matchesKeywords(p, keywords) {
			continue
		}
		if c.PriceMax != nil && p.Price > *c.PriceMax {
			continue
		}
		if c.PriceMin != nil && p.Price < *c.PriceMin {
			continue
		}
		if brand != "" && !strings.Contains(strings.ToLower(p.Title), brand) {
			continue
		}
		out = append(out, p)
	}

	// Urgent queries reorder by sales and truncate before the feature
	// filters; candidates cut here are gone for the rest of the pass.
	if strings.Contains(strings.ToLower(c.Urgency), "urgent") {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Sold > out[j].Sold
		})
		if len(out) > urgentLimit {
			out = out[:urgentLimit]
		}
	}

	if len(c.MustHaveFeatures) > 0 || len(c.AvoidFeatures) > 0 {
		filtered := make([]catalog.Product, 0, len(out))
	next:
		for _, p := range out {
			for _, feature := range c.MustHaveFeatures {
				if !matchesFeature(p, feature) {
					continue next
				}
			}
			for _, feature := range c.AvoidFeatures {
				if matchesFeature(p, feature) {
					continue next
				}
			}
			filtered = append(filtered, p)
		}
		out = filtered
	}

	return out
}

// Relax strips every constraint except the product type. Relaxing an already
// relaxed constraint set is a no-op.
func Relax(c Constraints) Constraints {
	return Constraints{ProductType: c.ProductType}
}

// matchesKeywords reports whether every keyword appears somewhere in the
// product's title, description, or category (case-insensitive substring).
func matchesKeywords(p catalog.Product, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(p.Title) + "\n" + strings.ToLower(p.Description)
	if p.Category != "" {
		haystack += "\n" + strings.ToLower(p.Category)
	}
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return true
}

// matchesFeature reports whether a feature term appears in the product's
// description or any of its tags (case-insensitive substring).
func matchesFeature(p catalog.Product, feature string) bool {
	feature = strings.ToLower(strings.TrimSpace(feature))
	if feature == "" {
		return false
	}
	if strings.Contains(strings.ToLower(p.Description), feature) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), feature) {
			return true
		}
	}
	return false
}
