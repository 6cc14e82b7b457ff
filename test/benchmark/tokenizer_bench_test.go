package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus/loader"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/tokenizer"
)

var ingredientLines = []string{
	"1 (3½–4-lb.) whole chicken",
	"2¾ tsp. kosher salt, divided, plus more",
	"2 small acorn squash (about 3 lb. total)",
	"2 Tbsp. finely chopped sage",
	"1 Tbsp. finely chopped rosemary",
	"6 Tbsp. unsalted butter, melted, plus 3 Tbsp. room temperature",
	"¼ tsp. ground allspice",
	"Pinch of crushed red pepper flakes",
}

func BenchmarkWords(b *testing.B) {
	text := strings.Join(ingredientLines, " ")
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = tokenizer.Words(text)
	}
}

func BenchmarkNormalizeAll(b *testing.B) {
	raw := []string{"  Cumin ", "GARLIC", "", "onion", "Bell Pepper  ", "   "}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tokenizer.NormalizeAll(raw)
	}
}

func BenchmarkParseIngredientList(b *testing.B) {
	quoted := make([]string, len(ingredientLines))
	for i, l := range ingredientLines {
		quoted[i] = "'" + l + "'"
	}
	literal := "[" + strings.Join(quoted, ", ") + "]"
	b.ReportAllocs()
	b.SetBytes(int64(len(literal)))
	for i := 0; i < b.N; i++ {
		_ = loader.ParseIngredientList(literal)
	}
}
