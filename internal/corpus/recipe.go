// Package corpus holds the immutable recipe collection the recommender ranks
// over. A Store is populated once at startup and only read afterwards.
package corpus

// Recipe is a single corpus entry. Ingredients keeps the order the dataset
// lists them in; IngredientsText is the raw ingredient column for display.
type Recipe struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Image           string   `json:"image"`
	Ingredients     []string `json:"ingredients"`
	Instructions    string   `json:"instructions"`
	IngredientsText string   `json:"ingredients_text"`
}

// Preview returns at most n leading ingredients.
func (r Recipe) Preview(n int) []string {
	if n < 0 || n >= len(r.Ingredients) {
		n = len(r.Ingredients)
	}
	out := make([]string, n)
	copy(out, r.Ingredients[:n])
	return out
}
