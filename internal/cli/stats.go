package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"phrasematch/config"
	"phrasematch/internal/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record store statistics",
	Long: `Show how many records are stored, the schema version, and the index
statistics recorded by the last build.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

type storeStats struct {
	Path          string       `json:"path"`
	Records       int          `json:"records"`
	SchemaVersion int          `json:"schema_version"`
	ConfigHash    string       `json:"config_hash"`
	LastBuild     domain.Stats `json:"last_build"`
}

func runStats(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetRootDir(), false)
	if err != nil {
		return err
	}
	defer st.Close()

	out := storeStats{Path: config.StoreDBPath(GetRootDir())}
	if out.Records, err = st.Count(); err != nil {
		return err
	}
	if out.LastBuild, err = st.GetStats(); err != nil {
		return err
	}
	info, err := st.GetSchemaInfo()
	if err != nil {
		return err
	}
	out.SchemaVersion = info.Version
	out.ConfigHash = info.ConfigHash

	if statsJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Record store: %s\n", out.Path)
	fmt.Printf("  Records:        %d\n", out.Records)
	fmt.Printf("  Schema version: %d\n", out.SchemaVersion)
	fmt.Printf("  Config hash:    %s\n", out.ConfigHash)
	fmt.Printf("\nLast build:\n")
	fmt.Printf("  Phrases:  %d\n", out.LastBuild.Phrases)
	fmt.Printf("  Records:  %d\n", out.LastBuild.Records)
	fmt.Printf("  Trigrams: %d\n", out.LastBuild.Trigrams)
	fmt.Printf("  Postings: %d\n", out.LastBuild.Postings)
	fmt.Printf("  Skipped:  %d\n", out.LastBuild.Skipped)
	return nil
}
