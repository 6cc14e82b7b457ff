package corpus

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/errors"
)

// Store is a read-only, insertion-ordered recipe collection.
type Store struct {
	recipes []Recipe
	byID    map[int]int
}

// NewStore copies recipes into a Store. Ids must be positive and unique.
func NewStore(recipes []Recipe) (*Store, error) {
	s := &Store{
		recipes: make([]Recipe, len(recipes)),
		byID:    make(map[int]int, len(recipes)),
	}
	for i, r := range recipes {
		if r.ID <= 0 {
			return nil, fmt.Errorf("recipe %q at position %d: %w: id must be positive, got %d", r.Title, i, apperrors.ErrInvalidInput, r.ID)
		}
		if prev, dup := s.byID[r.ID]; dup {
			return nil, fmt.Errorf("recipe id %d at positions %d and %d: %w: duplicate id", r.ID, prev, i, apperrors.ErrInvalidInput)
		}
		r.Ingredients = append([]string(nil), r.Ingredients...)
		s.recipes[i] = r
		s.byID[r.ID] = i
	}
	return s, nil
}

// GetByID returns the recipe with the given id.
func (s *Store) GetByID(id int) (Recipe, error) {
	pos, ok := s.byID[id]
	if !ok {
		return Recipe{}, fmt.Errorf("recipe %d: %w", id, apperrors.ErrRecipeNotFound)
	}
	return s.recipes[pos], nil
}

// Has reports whether id is in the corpus.
func (s *Store) Has(id int) bool {
	_, ok := s.byID[id]
	return ok
}

// All returns every recipe in load order. The returned slice is a copy.
func (s *Store) All() []Recipe {
	out := make([]Recipe, len(s.recipes))
	copy(out, s.recipes)
	return out
}

func (s *Store) Len() int {
	return len(s.recipes)
}
