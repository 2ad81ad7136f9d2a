package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/extractor"
	"github.com/smartshop/search/internal/imageindex"
	"github.com/smartshop/search/internal/llm"
	"github.com/smartshop/search/internal/search"
	"github.com/smartshop/search/internal/sentiment"
	"github.com/smartshop/search/internal/service"
)

type stubStore struct {
	products []catalog.Product
	err      error
}

func (s *stubStore) List(context.Context) ([]catalog.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func (s *stubStore) Categories(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{"Electronics", "Kitchen"}, nil
}

func (s *stubStore) ImageRefs(context.Context) ([]catalog.ImageRef, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(context.Context, string, llm.GenerateOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (stubEmbedder) Dimension() int    { return 2 }
func (stubEmbedder) ModelName() string { return "stub" }

type stubImageEmbedder struct{ err error }

func (s stubImageEmbedder) EmbedImage(context.Context, []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}
func (stubImageEmbedder) Dimension() int { return 2 }

type classifyAllPositive struct{}

func (classifyAllPositive) Classify(context.Context, string) (bool, error) { return true, nil }

type testDeps struct {
	extractLLM *stubLLM
	pickLLM    *stubLLM
	index      imageindex.Index
	products   []catalog.Product
	storeErr   error
}

func newTestServer(deps testDeps) *httptest.Server {
	if deps.index == nil {
		deps.index = imageindex.NewMemoryIndex()
	}
	if deps.products == nil {
		deps.products = []catalog.Product{
			{ID: "1", Title: "Acme Headphones", Description: "bluetooth headphones", Category: "Electronics", Price: 89.99, Rating: 4.5, Sold: 500, Images: []string{"h.jpg"}, Reviews: []string{"great"}},
			{ID: "2", Title: "Ceramic Mug", Description: "a mug", Category: "Kitchen", Price: 12, Rating: 4.8, Sold: 90, Images: []string{}},
		}
	}
	if deps.extractLLM == nil {
		deps.extractLLM = &stubLLM{response: `{"product_type": "headphones"}`}
	}
	if deps.pickLLM == nil {
		deps.pickLLM = &stubLLM{response: `{"best_index": 0, "reasoning": "Most relevant match."}`}
	}

	var classifier sentiment.Classifier = classifyAllPositive{}
	svc := service.NewSearchService(service.SearchServiceConfig{
		Store:         &stubStore{products: deps.products, err: deps.storeErr},
		Extractor:     extractor.New(deps.extractLLM),
		Ranker:        search.NewSemanticRanker(stubEmbedder{}, nil),
		Scorer:        search.NewSentimentScorer(classifier, nil),
		Picker:        search.NewBestPickSelector(deps.pickLLM, nil),
		ImageEmbedder: stubImageEmbedder{},
		ImageIndex:    deps.index,
	})

	srv := NewHTTPServer(HTTPServerConfig{
		Port:       0,
		Service:    svc,
		ImageIndex: deps.index,
	})
	return httptest.NewServer(srv.router)
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestSimpleSearch_ReturnsProducts(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{"query": "bluetooth headphones"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Products []struct {
			Title           string   `json:"title"`
			SentimentScore  float64  `json:"sentiment_score"`
			SimilarityScore *float64 `json:"similarity_score"`
			Images          []string `json:"images"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(body.Products))
	}
	if body.Products[0].Title != "Acme Headphones" {
		t.Errorf("unexpected product: %+v", body.Products[0])
	}
	if body.Products[0].SentimentScore != 100 {
		t.Errorf("expected sentiment 100, got %v", body.Products[0].SentimentScore)
	}
	if body.Products[0].SimilarityScore == nil {
		t.Error("expected a similarity score")
	}
	if body.Products[0].Images == nil {
		t.Error("images must serialize as a list")
	}
}

func TestSimpleSearch_NoMatchesIsEmptyNotError(t *testing.T) {
	ts := newTestServer(testDeps{
		extractLLM: &stubLLM{response: `{"product_type": "submarine"}`},
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{"query": "a submarine"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Products == nil || len(body.Products) != 0 {
		t.Errorf("expected empty products array, got %v", body.Products)
	}
}

func TestSimpleSearch_RelaxedFilterRecovers(t *testing.T) {
	// The price cap excludes every headphone, so the strict pass comes back
	// empty; relaxation keeps only the product type and recovers the match.
	ts := newTestServer(testDeps{
		extractLLM: &stubLLM{response: `{"product_type": "headphones", "price_max": 5}`},
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{"query": "headphones under five dollars"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Products []struct {
			Title string  `json:"title"`
			Price float64 `json:"price"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 1 {
		t.Fatalf("expected the relaxed pass to recover 1 product, got %d", len(body.Products))
	}
	if body.Products[0].Title != "Acme Headphones" {
		t.Errorf("unexpected product: %+v", body.Products[0])
	}
	if body.Products[0].Price <= 5 {
		t.Errorf("relaxation must drop the price cap, got price %v", body.Products[0].Price)
	}
}

func TestSimpleSearch_StoreDownIs500(t *testing.T) {
	ts := newTestServer(testDeps{
		storeErr: fmt.Errorf("%w: connection refused", catalog.ErrUnavailable),
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{"query": "headphones"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestSimpleSearch_ExtractionFailureIs400(t *testing.T) {
	ts := newTestServer(testDeps{
		extractLLM: &stubLLM{err: errors.New("model down")},
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{"query": "anything"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSimpleSearch_MissingQueryIs400(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/simple-search", `{}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRecommend_ReturnsWinnerWithReasoning(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/recommend", `{"query": "bluetooth headphones"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Title     string `json:"title"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Title != "Acme Headphones" {
		t.Errorf("unexpected winner: %q", body.Title)
	}
	if body.Reasoning == "" {
		t.Error("recommendation must carry a reasoning")
	}
}

func TestRecommend_NoCandidatesIs404(t *testing.T) {
	ts := newTestServer(testDeps{
		extractLLM: &stubLLM{response: `{"product_type": "submarine"}`},
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/recommend", `{"query": "a submarine"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRecommend_FallbackWhenRankerDown(t *testing.T) {
	ts := newTestServer(testDeps{
		pickLLM: &stubLLM{err: errors.New("model down")},
	})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/recommend", `{"query": "bluetooth headphones"}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fallback must still answer, got %d", resp.StatusCode)
	}
	var body struct {
		Reasoning string `json:"reasoning"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Reasoning == "" {
		t.Error("fallback recommendation must carry a reasoning")
	}
}

func imageRequest(t *testing.T, url string, withFile bool) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if withFile {
		fw, err := w.CreateFormFile("image", "query.jpg")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		fw.Write([]byte("fake-image-bytes"))
	}
	w.Close()

	resp, err := http.Post(url, w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestReverseImageSearch_NotReadyIs503(t *testing.T) {
	ts := newTestServer(testDeps{index: imageindex.NewMemoryIndex()})
	defer ts.Close()

	resp := imageRequest(t, ts.URL+"/reverse-search/image", true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with empty index, got %d", resp.StatusCode)
	}
}

func TestReverseImageSearch_ReturnsMatches(t *testing.T) {
	idx := imageindex.NewMemoryIndex()
	_ = idx.Upsert(context.Background(), []imageindex.Entry{
		{ProductID: "1", Vector: []float32{1, 0}},
	})
	ts := newTestServer(testDeps{index: idx})
	defer ts.Close()

	resp := imageRequest(t, ts.URL+"/reverse-search/image", true)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Products []struct {
			Title           string   `json:"title"`
			SimilarityScore *float64 `json:"similarity_score"`
		} `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Products) != 1 || body.Products[0].Title != "Acme Headphones" {
		t.Errorf("unexpected products: %+v", body.Products)
	}
	if body.Products[0].SimilarityScore == nil {
		t.Error("image matches must carry similarity scores")
	}
}

func TestReverseImageSearch_MissingFileIs400(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp := imageRequest(t, ts.URL+"/reverse-search/image", false)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a file, got %d", resp.StatusCode)
	}
}

func TestListProducts_StoreDownIs500(t *testing.T) {
	ts := newTestServer(testDeps{
		storeErr: fmt.Errorf("%w: connection refused", catalog.ErrUnavailable),
	})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/products")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" {
		t.Error("expected an error message in the body")
	}
}

func TestListProducts_Passthrough(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/products")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var products []catalog.Product
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 2 {
		t.Errorf("expected full catalog dump, got %d products", len(products))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(testDeps{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
