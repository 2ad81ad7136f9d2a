package imageindex

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// collectionName is the single Qdrant collection holding product image vectors.
const collectionName = "product_images"

// QdrantIndex implements Index on a Qdrant collection, giving the image
// index durability across restarts. Point IDs are derived deterministically
// from product IDs so repeated preloads overwrite rather than duplicate.
type QdrantIndex struct {
	client *qdrant.Client
}

// NewQdrantIndex connects to Qdrant and ensures the image collection exists.
// url should be in format "host:port" (e.g., "localhost:6334").
func NewQdrantIndex(ctx context.Context, url string, dimension int) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client}
	if err := idx.ensureCollection(ctx, dimension); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the Qdrant client connection
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

func (s *QdrantIndex) ensureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// pointID maps an arbitrary product ID onto a stable UUID point ID.
func pointID(productID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("product:"+productID)).String()
}

// Upsert inserts or replaces entries.
func (s *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) == 0 {
			continue
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(e.ProductID)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: map[string]*qdrant.Value{
				"product_id": qdrant.NewValueString(e.ProductID),
			},
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the topK nearest neighbors by cosine similarity.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotReady
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]Match, 0, len(response))
	for _, point := range response {
		match := Match{Score: float64(point.Score)}
		if payload := point.Payload; payload != nil {
			if id, ok := payload["product_id"]; ok {
				match.ProductID = id.GetStringValue()
			}
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Count returns the number of loaded embeddings.
func (s *QdrantIndex) Count(ctx context.Context) (int, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(count), nil
}

// Ensure QdrantIndex implements Index.
var _ Index = (*QdrantIndex)(nil)
