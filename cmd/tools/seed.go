package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata/internal"
)

var (
	seedCount int
	seedValue int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with example and generated documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := toolsConfig()
		if err != nil {
			return err
		}
		log := zap.S()

		if _, err := os.Stat(cfg.Database.Path); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s, run generate first", cfg.Database.Path)
		}

		set, err := internal.LoadSchemas(cfg.Schemas.Dir, log)
		if err != nil {
			return fmt.Errorf("load schemas: %w", err)
		}

		validator, err := internal.NewValidator(set, log)
		if err != nil {
			return fmt.Errorf("compile validators: %w", err)
		}

		store, err := internal.OpenStore(cfg.Database.Path, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		seeder := internal.NewSeeder(store, validator, seedValue, log)
		if err := seeder.SeedExample(cmd.Context()); err != nil {
			return err
		}
		if seedCount > 0 {
			if err := seeder.SeedRandom(cmd.Context(), seedCount); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 0, "number of generated mine sites to add on top of the examples")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 1, "random seed for generated documents")
	rootCmd.AddCommand(seedCmd)
}
