// Package loader reads the recipe corpus and its inverted index at startup.
// The corpus comes from a CSV export, a JSON array or a Postgres table; the
// index is either a precomputed snapshot (.ridx segment or JSON) or built
// from the corpus. Both are checked against each other before serving.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// Loaded is a validated corpus and index pair.
type Loaded struct {
	Store    *corpus.Store
	Index    *index.InvertedIndex
	Prebuilt bool
	Elapsed  time.Duration
}

// Load reads the corpus and, when cfg.IndexPath is set, the index snapshot
// concurrently, then verifies every indexed id resolves in the corpus. db is
// only used for the postgres source and may be nil otherwise. The whole load
// is bounded by cfg.LoadTimeout.
func Load(ctx context.Context, cfg config.CorpusConfig, db *sql.DB) (*Loaded, error) {
	log := slog.Default().With("component", "corpus-loader")
	start := time.Now()

	mode, err := index.ParseMode(cfg.IndexMode)
	if err != nil {
		return nil, err
	}

	var out *Loaded
	err = resilience.WithTimeout(ctx, cfg.LoadTimeout, "corpus load", func(ctx context.Context) error {
		var (
			recipes []corpus.Recipe
			entries map[string][]int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			recipes, err = readCorpus(gctx, cfg, db)
			return err
		})
		if cfg.IndexPath != "" {
			g.Go(func() error {
				var err error
				entries, err = ReadIndex(cfg.IndexPath)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		store, err := corpus.NewStore(recipes)
		if err != nil {
			return fmt.Errorf("building corpus store: %w", err)
		}
		l := &Loaded{Store: store}
		if entries != nil {
			l.Index, err = index.New(entries)
			if err != nil {
				return fmt.Errorf("loading index %s: %w", cfg.IndexPath, err)
			}
			l.Prebuilt = true
		} else {
			l.Index = index.Build(recipes, mode)
		}
		if err := l.Index.Validate(store); err != nil {
			return fmt.Errorf("index does not match corpus: %w", err)
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Elapsed = time.Since(start)
	log.Info("corpus loaded",
		"source", cfg.Source,
		"recipes", out.Store.Len(),
		"tokens", out.Index.Len(),
		"prebuilt_index", out.Prebuilt,
		"elapsed", out.Elapsed,
	)
	return out, nil
}

func readCorpus(ctx context.Context, cfg config.CorpusConfig, db *sql.DB) ([]corpus.Recipe, error) {
	switch cfg.Source {
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("corpus source %q needs a database connection", cfg.Source)
		}
		return ReadPostgres(ctx, db, cfg.Table)
	case config.SourceCSV, config.SourceJSON:
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening corpus: %w", err)
		}
		defer f.Close()
		if cfg.Source == config.SourceJSON {
			return ReadJSON(f)
		}
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}

// ReadIndex reads a precomputed index. Files ending in .json hold a
// {"token": [ids]} object; anything else is read as a .ridx segment.
func ReadIndex(path string) (map[string][]int, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
		defer f.Close()
		return ReadIndexJSON(f)
	}
	r, err := segment.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}

// ExportIndex writes idx as a .ridx segment at path and returns the path
// written.
func ExportIndex(idx *index.InvertedIndex, path string) (string, error) {
	return segment.NewWriter(filepath.Dir(path)).Write(filepath.Base(path), idx.Entries())
}
