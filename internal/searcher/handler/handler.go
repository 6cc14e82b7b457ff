// Package handler exposes the recipe recommender over HTTP/JSON.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/logger"
)

const maxBodyBytes = 1 << 20

// SearchService is the query API the handler serves.
type SearchService interface {
	Search(ctx context.Context, rawTokens []string, limit int) (*service.SearchResult, error)
	GetByID(ctx context.Context, id int) (corpus.Recipe, error)
	ListAll(ctx context.Context) []corpus.Recipe
	Match(ctx context.Context, id int, rawTokens []string) (service.MatchResult, error)
}

// CacheAdmin is the operator surface of the query cache.
type CacheAdmin interface {
	Stats() cache.Stats
	Invalidate(ctx context.Context) (int64, error)
}

type Handler struct {
	svc         SearchService
	cache       CacheAdmin
	images      Images
	previewSize int
	admin       func(http.Handler) http.Handler
	logger      *slog.Logger
}

// New builds a Handler. queryCache may be nil when caching is disabled.
func New(svc SearchService, queryCache CacheAdmin, images Images, previewSize int) *Handler {
	if previewSize <= 0 {
		previewSize = 8
	}
	return &Handler{
		svc:         svc,
		cache:       queryCache,
		images:      images,
		previewSize: previewSize,
		logger:      slog.Default().With("component", "search-handler"),
	}
}

// ProtectAdmin wraps the operator endpoints in guard. It must be called
// before RegisterRoutes.
func (h *Handler) ProtectAdmin(guard func(http.Handler) http.Handler) *Handler {
	h.admin = guard
	return h
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/recipes", h.List)
	mux.HandleFunc("POST /api/v1/recipes/search", h.Search)
	mux.HandleFunc("GET /api/v1/recipes/{id}", h.Get)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)

	var invalidate http.Handler = http.HandlerFunc(h.CacheInvalidate)
	if h.admin != nil {
		invalidate = h.admin(invalidate)
	}
	mux.Handle("POST /api/v1/cache/invalidate", invalidate)
}

// List serves GET /api/v1/recipes. With an ingredients parameter it ranks;
// without one (or with only blank entries) it lists the whole corpus.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokens := queryTokens(q["ingredients"])
	if len(tokens) == 0 {
		h.listAll(w, r)
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.search(w, r, tokens, limit)
}

type searchRequest struct {
	Ingredients []string `json:"ingredients"`
	Limit       int      `json:"limit"`
}

// Search serves POST /api/v1/recipes/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body must be JSON like {\"ingredients\": [\"cumin\"], \"limit\": 10}"))
		return
	}
	if req.Limit < 0 {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must not be negative"))
		return
	}
	h.search(w, r, req.Ingredients, req.Limit)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, tokens []string, limit int) {
	res, err := h.svc.Search(r.Context(), tokens, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := listResponse{
		Query:        res.Query,
		Results:      make([]recipeSummary, 0, len(res.Results)),
		TotalMatches: res.TotalMatches,
	}
	for _, rr := range res.Results {
		var instructions string
		full, err := h.svc.GetByID(r.Context(), rr.ID)
		if err != nil {
			logger.FromContext(r.Context()).Error("ranked recipe missing from store",
				"component", "search-handler",
				"recipe_id", rr.ID,
				"error", err,
			)
		} else {
			instructions = full.Instructions
		}
		out.Results = append(out.Results, h.summarizeRanked(rr, instructions))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	all := h.svc.ListAll(r.Context())
	out := catalogResponse{
		Query:        []string{},
		Results:      make([]catalogEntry, 0, len(all)),
		TotalMatches: len(all),
	}
	for _, rec := range all {
		out.Results = append(out.Results, h.catalogItem(rec))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// Get serves GET /api/v1/recipes/{id}, annotated with matched ingredients
// when the request carries an ingredients parameter.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "recipe id must be a positive integer"))
		return
	}
	tokens := queryTokens(r.URL.Query()["ingredients"])
	if len(tokens) == 0 {
		rec, err := h.svc.GetByID(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, h.detail(rec))
		return
	}
	m, err := h.svc.Match(r.Context(), id, tokens)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matchedDetail{
		recipeDetail:       h.detail(m.Recipe),
		MatchedIngredients: m.Matched,
		MatchPercent:       m.MatchPercent,
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// queryTokens accepts both ?ingredients=a,b and repeated ?ingredients=a.
func queryTokens(values []string) []string {
	var tokens []string
	for _, v := range values {
		tokens = append(tokens, tokenizer.SplitList(v)...)
	}
	return tokens
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its status code. Server-side failures are logged
// with the request id; clients only see the public message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"component", "search-handler",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	h.writeJSON(w, status, map[string]string{"error": apperrors.PublicMessage(err)})
}
