package ranker

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/errors"
)

// DefaultPreviewSize is how many leading ingredients a Result carries.
const DefaultPreviewSize = 8

// TokenIndex is the read side of the inverted index.
type TokenIndex interface {
	Tokens() []string
	IDsForToken(token string) []int
}

// RecipeLookup resolves ranked ids to full recipes.
type RecipeLookup interface {
	GetByID(id int) (corpus.Recipe, error)
}

// Result is one ranked recipe.
type Result struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Image              string   `json:"image"`
	Score              int      `json:"match_score"`
	IngredientsPreview []string `json:"ingredients_preview"`
}

// Options tunes a Rank call. The zero value uses DefaultPreviewSize.
type Options struct {
	Limit       int
	PreviewSize int
}

type scored struct {
	id    int
	score int
	key   string
}

// Score counts, for every recipe, how many index tokens matched any query
// token. A query token t matches index token k when k == t or k has prefix
// t; each matching k contributes one point to every recipe listed under it,
// so one short query token can add several points to the same recipe.
func Score(idx TokenIndex, tokens []string) map[int]int {
	scores := make(map[int]int)
	known := idx.Tokens()
	for _, t := range tokens {
		for _, k := range known {
			if !strings.HasPrefix(k, t) {
				continue
			}
			for _, id := range idx.IDsForToken(k) {
				scores[id]++
			}
		}
	}
	return scores
}

// Rank scores recipes against the query tokens and returns them ordered by
// score descending, then case-insensitive title ascending, then id. The
// list is fully sorted before truncating to opts.Limit (<= 0 means no limit).
// A scored id missing from the store yields a *errors.DataIntegrityError.
func Rank(idx TokenIndex, store RecipeLookup, rawTokens []string, opts Options) ([]Result, int, error) {
	tokens := tokenizer.NormalizeAll(rawTokens)
	if len(tokens) == 0 {
		return []Result{}, 0, nil
	}
	previewSize := opts.PreviewSize
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}

	scores := Score(idx, tokens)
	candidates := make([]scored, 0, len(scores))
	recipes := make(map[int]corpus.Recipe, len(scores))
	for id, score := range scores {
		if score == 0 {
			continue
		}
		r, err := store.GetByID(id)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrRecipeNotFound) {
				return nil, 0, &apperrors.DataIntegrityError{RecipeID: id}
			}
			return nil, 0, err
		}
		recipes[id] = r
		candidates = append(candidates, scored{id: id, score: score, key: strings.ToLower(r.Title)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.key != b.key {
			return a.key < b.key
		}
		return a.id < b.id
	})
	total := len(candidates)
	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r := recipes[c.id]
		results = append(results, Result{
			ID:                 r.ID,
			Title:              r.Title,
			Image:              r.Image,
			Score:              c.score,
			IngredientsPreview: r.Preview(previewSize),
		})
	}
	return results, total, nil
}
