package imageindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index doing a brute-force cosine scan. Writes
// happen during the startup preload; after that the index is effectively
// read-only, so a single RWMutex is plenty.
type MemoryIndex struct {
	mu      sync.RWMutex
	ids     []string
	vectors [][]float32
	byID    map[string]int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{byID: make(map[string]int)}
}

// Upsert inserts or replaces entries.
func (m *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		if i, ok := m.byID[e.ProductID]; ok {
			m.vectors[i] = e.Vector
			continue
		}
		m.byID[e.ProductID] = len(m.ids)
		m.ids = append(m.ids, e.ProductID)
		m.vectors = append(m.vectors, e.Vector)
	}
	return nil
}

// Search scans every stored vector and returns the topK most similar.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, topK int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.ids) == 0 {
		return nil, ErrNotReady
	}

	matches := make([]Match, 0, len(m.ids))
	for i, id := range m.ids {
		matches = append(matches, Match{
			ProductID: id,
			Score:     cosineSimilarity(vector, m.vectors[i]),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of loaded embeddings.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Ensure MemoryIndex implements Index.
var _ Index = (*MemoryIndex)(nil)
