package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"phrasematch/config"
	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/adapter/store"
	"phrasematch/internal/logging"
	"phrasematch/internal/usecase"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding .phrasematch")
	query := flag.String("q", "", "Query to test")
	queryFile := flag.String("queries", "", "File with one query per line")
	limit := flag.Int("k", fuzzy.DefaultMaxResults, "Records to cover per query")
	runs := flag.Int("n", 20, "Runs per query")
	scoring := flag.String("scoring", "", "Term scoring: tokens or whole")
	flag.Parse()
	if *runs < 1 {
		*runs = 1
	}

	queries, err := loadQueries(*query, *queryFile)
	if err != nil || len(queries) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./data -q \"query\" [-queries file] [-k 25] [-n 20]")
		fmt.Println("\nReports per query:")
		fmt.Println("  1. Latency over n runs (min, median, max)")
		fmt.Println("  2. Phrases returned and records covered")
		fmt.Println("  3. Best score")
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	ts, err := fuzzy.ParseTermScoring(*scoring)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.StoreDBPath(*dir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening record store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	log := logging.Discard()
	built, err := usecase.NewBuildUseCase(st, nil, log).Build(context.Background(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		os.Exit(1)
	}

	// No cache, so every run pays for a full search.
	search := usecase.NewSearchUseCase(nil, nil, nil, usecase.SearchConfig{
		Options: fuzzy.SearchOptions{
			MaxResults:    *limit,
			MaxCandidates: cfg.Query.MaxCandidates,
			TermScoring:   ts,
		},
	}, log)
	search.Swap(built.Index, built.Codes)

	fmt.Println("FUZZY SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Records:  %d\n", built.Stats.Records)
	fmt.Printf("Phrases:  %d\n", built.Stats.Phrases)
	fmt.Printf("Trigrams: %d (%d postings)\n", built.Stats.Trigrams, built.Stats.Postings)
	fmt.Printf("Build:    %s\n", built.Duration)
	fmt.Printf("Scoring:  %s, k=%d, runs=%d\n\n", ts, *limit, *runs)

	var medians []time.Duration
	for _, q := range queries {
		latencies := make([]time.Duration, 0, *runs)
		var matches int
		var covered int
		best := -1
		for i := 0; i < *runs; i++ {
			start := time.Now()
			results, err := search.Search(q, *limit)
			latencies = append(latencies, time.Since(start))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
				os.Exit(1)
			}
			if i == 0 {
				matches = len(results)
				for _, r := range results {
					covered += len(r.Positions)
				}
				if len(results) > 0 {
					best = results[0].Score
				}
			}
		}
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		median := latencies[len(latencies)/2]
		medians = append(medians, median)

		fmt.Printf("%q\n", q)
		fmt.Printf("   latency: min %s  median %s  max %s\n", latencies[0], median, latencies[len(latencies)-1])
		fmt.Printf("   phrases: %d  records covered: %d  best score: %d\n\n", matches, covered, best)
	}

	sort.Slice(medians, func(i, j int) bool { return medians[i] < medians[j] })
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("SUMMARY over %d queries:\n", len(queries))
	fmt.Printf("  Median of medians: %s\n", medians[len(medians)/2])
	fmt.Printf("  Slowest median:    %s\n", medians[len(medians)-1])
}

func loadQueries(query, path string) ([]string, error) {
	var queries []string
	if query != "" {
		queries = append(queries, query)
	}
	if path == "" {
		return queries, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, scanner.Err()
}
