package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/errors"
)

// Mode selects how Build derives tokens from a recipe's ingredients.
type Mode int

const (
	// ModePhrase indexes each whole normalised ingredient ("cumin seed").
	ModePhrase Mode = iota
	// ModeWords indexes each alphabetic word of the ingredient text.
	ModeWords
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "phrase":
		return ModePhrase, nil
	case "words":
		return ModeWords, nil
	default:
		return 0, fmt.Errorf("unknown index mode %q", s)
	}
}

// TermEntry is one row of the index in token order.
type TermEntry struct {
	Token string
	IDs   []int
}

// InvertedIndex maps a normalised ingredient token to the ids of recipes
// containing it. It is immutable once constructed. Every entry is non-empty.
type InvertedIndex struct {
	postings map[string][]int
	tokens   []string
}

// New builds an index from a raw token→ids mapping such as a precomputed
// snapshot. Keys are normalised, keys that collide after normalisation are
// merged, and ids are sorted and deduplicated. Empty tokens, empty id sets
// and non-positive ids are rejected.
func New(entries map[string][]int) (*InvertedIndex, error) {
	merged := make(map[string]map[int]struct{}, len(entries))
	for raw, ids := range entries {
		token := tokenizer.Normalize(raw)
		if token == "" {
			return nil, fmt.Errorf("%w: blank index token %q", apperrors.ErrInvalidInput, raw)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: index token %q has no recipe ids", apperrors.ErrInvalidInput, raw)
		}
		set, ok := merged[token]
		if !ok {
			set = make(map[int]struct{}, len(ids))
			merged[token] = set
		}
		for _, id := range ids {
			if id <= 0 {
				return nil, fmt.Errorf("%w: index token %q has non-positive id %d", apperrors.ErrInvalidInput, raw, id)
			}
			set[id] = struct{}{}
		}
	}
	return fromSets(merged), nil
}

// Build derives an index from the corpus.
func Build(recipes []corpus.Recipe, mode Mode) *InvertedIndex {
	sets := make(map[string]map[int]struct{})
	add := func(token string, id int) {
		set, ok := sets[token]
		if !ok {
			set = make(map[int]struct{})
			sets[token] = set
		}
		set[id] = struct{}{}
	}
	for _, r := range recipes {
		for _, ing := range r.Ingredients {
			switch mode {
			case ModeWords:
				for _, w := range tokenizer.Words(ing) {
					add(w, r.ID)
				}
			default:
				if t := tokenizer.Normalize(ing); t != "" {
					add(t, r.ID)
				}
			}
		}
	}
	return fromSets(sets)
}

func fromSets(sets map[string]map[int]struct{}) *InvertedIndex {
	idx := &InvertedIndex{
		postings: make(map[string][]int, len(sets)),
		tokens:   make([]string, 0, len(sets)),
	}
	for token, set := range sets {
		if len(set) == 0 {
			continue
		}
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		idx.postings[token] = ids
		idx.tokens = append(idx.tokens, token)
	}
	sort.Strings(idx.tokens)
	return idx
}

// Tokens returns every known token in ascending order.
func (x *InvertedIndex) Tokens() []string {
	return x.tokens
}

// IDsForToken returns the recipe ids under token, or nil when the token is
// unknown. The slice must not be modified.
func (x *InvertedIndex) IDsForToken(token string) []int {
	return x.postings[token]
}

// Len returns the number of distinct tokens.
func (x *InvertedIndex) Len() int {
	return len(x.tokens)
}

// Entries returns the index rows in token order.
func (x *InvertedIndex) Entries() []TermEntry {
	entries := make([]TermEntry, 0, len(x.tokens))
	for _, t := range x.tokens {
		entries = append(entries, TermEntry{Token: t, IDs: x.postings[t]})
	}
	return entries
}

// Validate checks that every id in the index resolves in the corpus and
// returns a *errors.DataIntegrityError for the first one that does not.
func (x *InvertedIndex) Validate(store interface{ Has(id int) bool }) error {
	for _, token := range x.tokens {
		for _, id := range x.postings[token] {
			if !store.Has(id) {
				return &apperrors.DataIntegrityError{RecipeID: id, Token: token}
			}
		}
	}
	return nil
}
