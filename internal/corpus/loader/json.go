package loader

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
)

// ReadJSON decodes a JSON array of recipes, using corpus.Recipe's field
// names.
func ReadJSON(r io.Reader) ([]corpus.Recipe, error) {
	var recipes []corpus.Recipe
	if err := json.NewDecoder(r).Decode(&recipes); err != nil {
		return nil, fmt.Errorf("decoding recipe json: %w", err)
	}
	return recipes, nil
}

// ReadIndexJSON decodes a precomputed index written as {"token": [ids]}.
func ReadIndexJSON(r io.Reader) (map[string][]int, error) {
	var entries map[string][]int
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding index json: %w", err)
	}
	return entries, nil
}
