package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stratify-db/stratify"
	"github.com/stratify-db/stratify/internal/adapter"
	"github.com/stratify-db/stratify/internal/config"
	"github.com/stratify-db/stratify/internal/migrate"
)

var (
	cfgFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "stratify",
	Short: "stratify - SQL schema migrations with a recorded ledger",
	Long: `Tracks which timestamped migration files have been applied to a
database, shows the delta, and applies or reverts them one at a time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to stratify.yaml (default: search upward from CWD)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "machine-readable output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

// fatal prints err and exits non-zero. Every surfaced error ends the
// invocation this way.
func fatal(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fatal(err)
	}
	return cfg
}

// openMigrator builds the per-invocation stack: adapter, unit source,
// migrator. The caller must Close the returned adapter on every path.
func openMigrator(ctx context.Context, cfg *config.Config) (*migrate.Migrator, adapter.Adapter) {
	m, a, err := stratify.Open(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	return m, a
}
