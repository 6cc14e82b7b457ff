package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
)

// Column names of the Food Ingredients and Recipe dataset export. The id
// column has an empty header (it is the exporting DataFrame's index).
const (
	colID                 = ""
	colTitle              = "Title"
	colCleanedIngredients = "Cleaned_Ingredients"
	colIngredients        = "Ingredients"
	colInstructions       = "Instructions"
	colImageName          = "Image_Name"
	colImageURL           = "Image_URL"
)

// ReadCSV parses a recipe CSV. The id column holds zero-based indexes, so
// ids are shifted by one; rows without a usable id take their 1-based row
// number. Ingredients come from Cleaned_Ingredients, falling back to
// Ingredients, and may be written as a Python list literal. An absolute
// Image_URL wins over Image_Name.
func ReadCSV(r io.Reader) ([]corpus.Recipe, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	if _, ok := cols[colTitle]; !ok {
		return nil, fmt.Errorf("csv header has no %q column", colTitle)
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var recipes []corpus.Recipe
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", row, err)
		}

		id := row
		if raw := strings.TrimSpace(field(rec, colID)); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
				id = n + 1
			}
		}
		text := field(rec, colCleanedIngredients)
		if strings.TrimSpace(text) == "" {
			text = field(rec, colIngredients)
		}
		image := strings.Trim(strings.TrimSpace(field(rec, colImageName)), `"'`)
		if u := strings.TrimSpace(field(rec, colImageURL)); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			image = u
		}

		recipes = append(recipes, corpus.Recipe{
			ID:              id,
			Title:           strings.TrimSpace(field(rec, colTitle)),
			Image:           image,
			Ingredients:     ParseIngredientList(text),
			Instructions:    field(rec, colInstructions),
			IngredientsText: text,
		})
	}
	return recipes, nil
}

// ParseIngredientList reads a Python-style list literal such as
// ['2 cups rice', "baby's spinach"] into its elements. Text that is not a
// list literal is split on newlines instead. Blank elements are dropped.
func ParseIngredientList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return splitLines(s)
	}
	body := s[1 : len(s)-1]

	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
			cur.Reset()
		case quote != 0 && c == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
		case quote != 0 && c == quote:
			quote = 0
			if item := strings.TrimSpace(cur.String()); item != "" {
				out = append(out, item)
			}
		case quote != 0:
			cur.WriteRune(c)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func splitLines(s string) []string {
	out := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
