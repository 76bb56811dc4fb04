package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"phrasematch/internal/usecase"
)

var (
	queryText    string
	queryLimit   int
	queryJSON    bool
	queryScoring string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the loaded phrases",
	Long: `Build the index from the record store and print the phrases closest to
the query, best first. The limit bounds how many source records the results
cover, not how many phrases are printed.

Examples:
  phrasematch query -q "wrist woound"
  phrasematch query -q "fractur ankle" --limit 5 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "k", 0, "records to cover (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().StringVar(&queryScoring, "scoring", "", "term scoring: tokens or whole (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	searchCfg, err := searchConfig(cfg, queryScoring)
	if err != nil {
		return err
	}

	st, err := openStore(GetRootDir(), false)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := buildIndex(cmd.Context(), st, nil)
	if err != nil {
		return err
	}

	search := usecase.NewSearchUseCase(nil, nil, nil, searchCfg, logger)
	search.Swap(result.Index, result.Codes)

	limit := search.Limit(queryLimit)
	matches, err := search.Search(queryText, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(matches, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d phrases for: %s\n\n", len(matches), queryText)
	for i, m := range matches {
		fmt.Printf("[%d] %s (score: %d)\n", i+1, m.Phrase, m.Score)
		if len(m.Codes) > 0 {
			fmt.Printf("    codes: %s\n", strings.Join(m.Codes, ", "))
		}
		fmt.Printf("    records: %v\n", m.Positions)
	}
	return nil
}
