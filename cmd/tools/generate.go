package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata/internal"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the DDL from the schema corpus and rebuild the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := toolsConfig()
		if err != nil {
			return err
		}
		log := zap.S()

		set, err := internal.LoadSchemas(cfg.Schemas.Dir, log)
		if err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}

		gen, err := internal.NewGenerator(set, log)
		if err != nil {
			return fmt.Errorf("build generator: %w", err)
		}
		ddl := gen.GenerateSQL()

		if dir := filepath.Dir(cfg.Database.DDLPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create ddl directory: %w", err)
			}
		}
		if err := os.WriteFile(cfg.Database.DDLPath, []byte(ddl), 0o644); err != nil {
			return fmt.Errorf("write ddl: %w", err)
		}
		log.Infow("ddl written", "path", cfg.Database.DDLPath)

		ddlOnly, _ := cmd.Flags().GetBool("ddl-only")
		if ddlOnly {
			return nil
		}

		store, err := internal.RebuildStore(cfg.Database.Path, ddl, log)
		if err != nil {
			return fmt.Errorf("rebuild database: %w", err)
		}
		defer store.Close()

		log.Infow("database rebuilt", "path", cfg.Database.Path)
		return nil
	},
}

func init() {
	generateCmd.Flags().Bool("ddl-only", false, "write the DDL file without touching the database")
	rootCmd.AddCommand(generateCmd)
}
