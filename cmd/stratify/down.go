package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recently applied migration",
	Long: `Revert the single most recently applied migration (by ledger
order) and remove its ledger entry. Run repeatedly to walk further back.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		cfg := loadConfig()
		audit := newAuditLogger(cfg)
		defer audit.close()

		m, a := openMigrator(ctx, cfg)
		defer func() { _ = a.Close() }()

		id, err := m.Down(ctx)
		if err != nil {
			audit.log("down: failed: %v", err)
			fatal(err)
		}
		if id == "" {
			if jsonOutput {
				outputJSON(map[string]any{"reverted": nil})
				return
			}
			fmt.Println("Nothing to rollback - ledger is empty")
			return
		}
		audit.log("down: reverted %s", id)
		if jsonOutput {
			outputJSON(map[string]any{"reverted": id})
			return
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s %s\n", yellow("reverted"), id)
	},
}

func init() {
	rootCmd.AddCommand(downCmd)
}
