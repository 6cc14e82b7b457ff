package loader

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ReadPostgres loads every row of table ordered by id. The table needs the
// columns id, title, image, ingredients (text[]), instructions and
// ingredients_text.
func ReadPostgres(ctx context.Context, db *sql.DB, table string) ([]corpus.Recipe, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid recipe table name %q", table)
	}
	query := fmt.Sprintf(
		`SELECT id, title, COALESCE(image, ''), ingredients, COALESCE(instructions, ''), COALESCE(ingredients_text, '') FROM %s ORDER BY id`,
		quoteTable(table),
	)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying recipes: %w", err)
	}
	defer rows.Close()

	var recipes []corpus.Recipe
	for rows.Next() {
		var (
			r    corpus.Recipe
			ings pq.StringArray
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Image, &ings, &r.Instructions, &r.IngredientsText); err != nil {
			return nil, fmt.Errorf("scanning recipe row: %w", err)
		}
		r.Ingredients = []string(ings)
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recipe rows: %w", err)
	}
	return recipes, nil
}

func quoteTable(table string) string {
	for i := 0; i < len(table); i++ {
		if table[i] == '.' {
			return pq.QuoteIdentifier(table[:i]) + "." + pq.QuoteIdentifier(table[i+1:])
		}
	}
	return pq.QuoteIdentifier(table)
}
