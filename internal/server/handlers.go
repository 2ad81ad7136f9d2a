package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/smartshop/search/internal/catalog"
	"github.com/smartshop/search/internal/extractor"
	"github.com/smartshop/search/internal/imageindex"
	"github.com/smartshop/search/internal/search"
	"github.com/smartshop/search/internal/service"
)

// maxImageUpload caps the multipart memory budget for image uploads.
const maxImageUpload = 10 << 20

type handlers struct {
	svc    *service.SearchService
	logger *slog.Logger
}

type searchRequest struct {
	Query string `json:"query"`
}

// productResponse is the serialization contract for scored products.
// similarity_score is null when the signal was unavailable; images always
// serializes as a list.
type productResponse struct {
	Title           string   `json:"title"`
	Price           float64  `json:"price"`
	Rating          float64  `json:"rating"`
	SentimentScore  float64  `json:"sentiment_score"`
	Sold            int64    `json:"sold"`
	SimilarityScore *float64 `json:"similarity_score"`
	Images          []string `json:"images"`
	Category        string   `json:"category,omitempty"`
	Reviews         []string `json:"reviews,omitempty"`
}

type productListResponse struct {
	Products []productResponse `json:"products"`
}

type recommendResponse struct {
	productResponse
	Reasoning string `json:"reasoning"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toProductResponse(p search.ScoredProduct) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		Title:           p.Title,
		Price:           p.Price,
		Rating:          p.Rating,
		SentimentScore:  p.SentimentScore,
		Sold:            p.Sold,
		SimilarityScore: p.SimilarityScore,
		Images:          images,
		Category:        p.Category,
		Reviews:         p.Reviews,
	}
}

func (h *handlers) simpleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	products, err := h.svc.SimpleSearch(r.Context(), req.Query)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}

	resp := productListResponse{Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) recommend(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	rec, err := h.svc.Recommend(r.Context(), req.Query)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, recommendResponse{
		productResponse: toProductResponse(rec.ScoredProduct),
		Reasoning:       rec.Reasoning,
	})
}

func (h *handlers) reverseImageSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageUpload))
	if err != nil || len(data) == 0 {
		h.writeError(w, http.StatusBadRequest, "could not read image file")
		return
	}

	topK := 0
	if v := r.FormValue("top_k"); v != "" {
		topK, err = strconv.Atoi(v)
		if err != nil || topK < 0 {
			h.writeError(w, http.StatusBadRequest, "top_k must be a non-negative integer")
			return
		}
	}

	products, err := h.svc.ReverseImageSearch(r.Context(), data, topK)
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}

	resp := productListResponse{Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeMappedError(w, r, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

// writeMappedError translates pipeline error kinds into HTTP statuses:
// extraction failures are the client's problem, exhausted candidates are
// not-found, an unpopulated image index is service-unavailable, and
// everything else (catalog down included) is a server error.
func (h *handlers) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, extractor.ErrExtraction):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, search.ErrNoCandidates):
		h.writeError(w, http.StatusNotFound, "no matching products found")
	case errors.Is(err, imageindex.ErrNotReady):
		h.writeError(w, http.StatusServiceUnavailable, "image index is still loading, try again later")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
