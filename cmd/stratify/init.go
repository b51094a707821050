package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stratify-db/stratify/internal/config"
	"github.com/stratify-db/stratify/internal/configfile"
)

var initDBType string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize stratify in the current directory",
	Long: `Create a starter stratify.yaml and the migrations directory if
they don't exist, then create the ledger table if the database is
configured and reachable.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		scaffolded := false
		if cfgFile == "" && !configfile.Exists(".") {
			path, err := configfile.Write(".", initDBType, "migrations", "migrations")
			if err != nil {
				fatal(err)
			}
			scaffolded = true
			fmt.Printf("%s Created %s\n", green("✓"), cyan(path))
		}

		cfg := loadConfig()
		audit := newAuditLogger(cfg)
		defer audit.close()

		if err := os.MkdirAll(cfg.MigrationsDir, 0o755); err != nil {
			fatal(fmt.Errorf("create migrations directory: %w", err))
		}
		fmt.Printf("%s Migrations directory %s\n", green("✓"), cyan(cfg.MigrationsDir))

		if _, err := cfg.Store(); err != nil {
			if scaffolded && errors.Is(err, config.ErrInvalid) {
				// A fresh scaffold has no connection details yet.
				fmt.Printf("\nFill in the database section of %s, then run %s again to create the ledger table.\n",
					cyan(config.FileName), cyan("stratify init"))
				return
			}
			fatal(err)
		}

		m, a := openMigrator(ctx, cfg)
		defer func() { _ = a.Close() }()

		if err := m.Init(ctx); err != nil {
			audit.log("init: failed: %v", err)
			fatal(err)
		}
		audit.log("init: ledger table %s ready", cfg.TableName)
		fmt.Printf("%s Ledger table %s ready\n", green("✓"), cyan(cfg.TableName))
	},
}

func init() {
	initCmd.Flags().StringVar(&initDBType, "type", "postgres", "database type for the scaffolded config (postgres, mysql, sqlite)")
	rootCmd.AddCommand(initCmd)
}
