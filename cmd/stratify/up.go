package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long: `Apply every pending migration in ascending identifier order,
recording each in the ledger immediately after it succeeds. Stops at the
first failure; already-applied migrations stay recorded.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		audit := newAuditLogger(cfg)
		defer audit.close()

		m, a := openMigrator(ctx, cfg)
		defer func() { _ = a.Close() }()

		if err := m.Init(ctx); err != nil {
			fatal(err)
		}

		applied, err := m.Up(ctx)
		green := color.New(color.FgGreen).SprintFunc()
		for _, id := range applied {
			audit.log("up: applied %s", id)
			if !jsonOutput {
				fmt.Printf("%s %s\n", green("applied"), id)
			}
		}
		if err != nil {
			audit.log("up: failed: %v", err)
			if jsonOutput {
				outputJSON(map[string]any{"applied": applied, "error": err.Error()})
			}
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]any{"applied": applied})
			return
		}
		if len(applied) == 0 {
			fmt.Println("Nothing to do - no pending migrations")
		}
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}
