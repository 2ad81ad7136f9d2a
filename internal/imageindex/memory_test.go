package imageindex

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryIndex_EmptyIsNotReady(t *testing.T) {
	idx := NewMemoryIndex()

	_, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady on empty index, got %v", err)
	}
}

func TestMemoryIndex_NearestNeighborOrder(t *testing.T) {
	idx := NewMemoryIndex()
	err := idx.Upsert(context.Background(), []Entry{
		{ProductID: "orthogonal", Vector: []float32{0, 1}},
		{ProductID: "exact", Vector: []float32{1, 0}},
		{ProductID: "diagonal", Vector: []float32{1, 1}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	wantOrder := []string{"exact", "diagonal", "orthogonal"}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	for i, id := range wantOrder {
		if matches[i].ProductID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, matches[i].ProductID)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestMemoryIndex_TopKTruncation(t *testing.T) {
	idx := NewMemoryIndex()
	_ = idx.Upsert(context.Background(), []Entry{
		{ProductID: "a", Vector: []float32{1, 0}},
		{ProductID: "b", Vector: []float32{0, 1}},
		{ProductID: "c", Vector: []float32{1, 1}},
	})

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex()
	_ = idx.Upsert(context.Background(), []Entry{{ProductID: "a", Vector: []float32{0, 1}}})
	_ = idx.Upsert(context.Background(), []Entry{{ProductID: "a", Vector: []float32{1, 0}}})

	count, err := idx.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", count)
	}

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if matches[0].Score < 0.999 {
		t.Errorf("expected replaced vector to match exactly, score %v", matches[0].Score)
	}
}

func TestMemoryIndex_SkipsEmptyVectors(t *testing.T) {
	idx := NewMemoryIndex()
	_ = idx.Upsert(context.Background(), []Entry{
		{ProductID: "empty", Vector: nil},
		{ProductID: "ok", Vector: []float32{1, 0}},
	})

	count, _ := idx.Count(context.Background())
	if count != 1 {
		t.Errorf("expected empty vectors to be skipped, count %d", count)
	}
}
