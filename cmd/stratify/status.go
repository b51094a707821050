package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show executed and pending migrations",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg := loadConfig()

		m, a := openMigrator(ctx, cfg)
		defer func() { _ = a.Close() }()

		st, err := m.StatusOf(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(st)
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("Executed (%d):\n", len(st.Executed))
		for _, id := range st.Executed {
			fmt.Printf("  %s %s\n", green("✓"), id)
		}
		fmt.Printf("Pending (%d):\n", len(st.Pending))
		for _, id := range st.Pending {
			fmt.Printf("  %s %s\n", yellow("•"), id)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
