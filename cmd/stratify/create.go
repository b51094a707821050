package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stratify-db/stratify/internal/scaffold"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new migration file",
	Long: `Create an empty timestamped migration file in the migrations
directory. Names may contain letters, digits and underscores.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		id, err := scaffold.Create(cfg.MigrationsDir, args[0])
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"id": id})
			return
		}
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("Created %s\n", cyan(fmt.Sprintf("%s/%s.sql", cfg.MigrationsDir, id)))
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
