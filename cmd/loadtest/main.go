package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed, color.Bold)
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Mode        string
	Limit       int
	MaxTokens   int
	Pantry      []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	zeroResults   atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

// searchResponse is the part of a search response the load test inspects.
type searchResponse struct {
	TotalMatches int `json:"total_matches"`
}

func main() {
	baseURL := flag.String("url", "http://localhost:5000", "base URL of the recipe service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mode := flag.String("mode", "mixed", "request mix: get, post or mixed")
	limit := flag.Int("limit", 20, "result limit sent with each search")
	maxTokens := flag.Int("max-tokens", 4, "maximum ingredients per query")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()
	if *noColor {
		color.NoColor = true
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Mode:        *mode,
		Limit:       *limit,
		MaxTokens:   max(*maxTokens, 1),
		Pantry: []string{
			"cumin", "turmeric", "coriander", "garam masala", "paprika",
			"chili", "cinnamon", "cardamom", "ginger", "garlic",
			"onion", "tomato", "potato", "spinach", "cauliflower",
			"carrot", "bell pepper", "eggplant", "zucchini", "peas",
			"mushroom", "cabbage", "lentils", "chickpeas", "rice",
		},
	}
	switch cfg.Mode {
	case "get", "post", "mixed":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", cfg.Mode)
		os.Exit(2)
	}

	heading.Println("=== Recipe Service Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Mode:        %s\n", cfg.Mode)
	fmt.Printf("Pantry:      %d ingredients, up to %d per query\n", len(cfg.Pantry), cfg.MaxTokens)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(workerID), uint64(time.Now().UnixNano())))
			for i := 0; ; i++ {
				if ctx.Err() != nil {
					return
				}
				tokens := pickIngredients(rng, cfg.Pantry, cfg.MaxTokens)
				usePost := cfg.Mode == "post" || (cfg.Mode == "mixed" && i%2 == 1)

				req, err := newSearchRequest(ctx, cfg, tokens, usePost)
				if err != nil {
					fmt.Fprintf(os.Stderr, "building request: %v\n", err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(elapsed, 0, err)
					}
					continue
				}
				var body searchResponse
				if json.NewDecoder(resp.Body).Decode(&body) == nil && resp.StatusCode == http.StatusOK && body.TotalMatches == 0 {
					stats.zeroResults.Add(1)
				}
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// pickIngredients draws between one and n distinct pantry items.
func pickIngredients(rng *rand.Rand, pantry []string, n int) []string {
	k := 1 + rng.IntN(min(n, len(pantry)))
	perm := rng.Perm(len(pantry))[:k]
	out := make([]string, k)
	for i, p := range perm {
		out[i] = pantry[p]
	}
	return out
}

func newSearchRequest(ctx context.Context, cfg Config, tokens []string, post bool) (*http.Request, error) {
	if post {
		payload, err := json.Marshal(map[string]any{"ingredients": tokens, "limit": cfg.Limit})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/recipes/search", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	q := url.Values{}
	q.Set("ingredients", strings.Join(tokens, ","))
	q.Set("limit", fmt.Sprint(cfg.Limit))
	return http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/recipes?"+q.Encode(), nil)
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	heading.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	good.Printf("Successful:      %d\n", success)
	if errors > 0 {
		bad.Printf("Errors:          %d\n", errors)
	} else {
		fmt.Printf("Errors:          %d\n", errors)
	}
	fmt.Printf("Zero Results:    %d\n", stats.zeroResults.Load())
	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		rateColor := good
		if errorRate >= 1 {
			rateColor = bad
		}
		rateColor.Printf("Error Rate:      %.2f%%\n", errorRate)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		heading.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	heading.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		bad.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
