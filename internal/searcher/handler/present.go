package handler

import (
	"path"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/searcher/ranker"
)

const instructionsPreviewRunes = 220

// Images turns a recipe's image reference into a URL the browser can load.
type Images struct {
	BaseURL     string
	Placeholder string
}

// URL passes absolute http(s) references through, joins bare file names to
// BaseURL and falls back to Placeholder when there is no reference.
func (im Images) URL(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return im.Placeholder
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case im.BaseURL == "":
		return ref
	case strings.HasPrefix(im.BaseURL, "http://"), strings.HasPrefix(im.BaseURL, "https://"):
		return strings.TrimRight(im.BaseURL, "/") + "/" + strings.TrimLeft(ref, "/")
	default:
		return path.Join(im.BaseURL, ref)
	}
}

// instructionsPreview is the first line of text, cut to 220 runes.
func instructionsPreview(text string) string {
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= instructionsPreviewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:instructionsPreviewRunes])
}

type recipeSummary struct {
	ID                  int      `json:"id"`
	Title               string   `json:"title"`
	ImageURL            string   `json:"image_url"`
	MatchScore          int      `json:"match_score"`
	IngredientsPreview  []string `json:"ingredients_preview"`
	InstructionsPreview string   `json:"instructions_preview"`
}

// catalogEntry is a recipe listed without a query, so it carries no score.
type catalogEntry struct {
	ID                  int      `json:"id"`
	Title               string   `json:"title"`
	ImageURL            string   `json:"image_url"`
	IngredientsPreview  []string `json:"ingredients_preview"`
	InstructionsPreview string   `json:"instructions_preview"`
}

type catalogResponse struct {
	Query        []string       `json:"query"`
	Results      []catalogEntry `json:"results"`
	TotalMatches int            `json:"total_matches"`
}

type listResponse struct {
	Query        []string        `json:"query"`
	Results      []recipeSummary `json:"results"`
	TotalMatches int             `json:"total_matches"`
}

type recipeDetail struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	ImageURL        string   `json:"image_url"`
	Ingredients     []string `json:"ingredients"`
	IngredientsText string   `json:"ingredients_text"`
	Instructions    string   `json:"instructions"`
}

// matchedDetail is a recipeDetail scored against the caller's ingredients.
type matchedDetail struct {
	recipeDetail
	MatchedIngredients []string `json:"matched_ingredients"`
	MatchPercent       int      `json:"match_percent"`
}

func (h *Handler) summarizeRanked(r ranker.Result, instructions string) recipeSummary {
	preview := r.IngredientsPreview
	if preview == nil {
		preview = []string{}
	}
	return recipeSummary{
		ID:                  r.ID,
		Title:               r.Title,
		ImageURL:            h.images.URL(r.Image),
		MatchScore:          r.Score,
		IngredientsPreview:  preview,
		InstructionsPreview: instructionsPreview(instructions),
	}
}

func (h *Handler) catalogItem(r corpus.Recipe) catalogEntry {
	return catalogEntry{
		ID:                  r.ID,
		Title:               r.Title,
		ImageURL:            h.images.URL(r.Image),
		IngredientsPreview:  r.Preview(h.previewSize),
		InstructionsPreview: instructionsPreview(r.Instructions),
	}
}

func (h *Handler) detail(r corpus.Recipe) recipeDetail {
	ings := r.Ingredients
	if ings == nil {
		ings = []string{}
	}
	return recipeDetail{
		ID:              r.ID,
		Title:           r.Title,
		ImageURL:        h.images.URL(r.Image),
		Ingredients:     ings,
		IngredientsText: r.IngredientsText,
		Instructions:    r.Instructions,
	}
}
