package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata/internal"
)

var validateCmd = &cobra.Command{
	Use:   "validate [schema] [file]",
	Short: "Validate a JSON document against a schema",
	Long: `Validate a JSON document against one of the compiled schemas.
Run without arguments to list the available schema names.`,
	Args: cobra.MaximumNArgs(2),
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

		validator, err := internal.NewValidator(set, log)
		if err != nil {
			return fmt.Errorf("compile validators: %w", err)
		}

		if len(args) < 2 {
			fmt.Println("Available schemas:")
			for _, name := range validator.Names() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		}

		raw, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}

		result := validator.ValidateJSON(raw, args[0])
		if result.Valid {
			fmt.Printf("%s is valid against %s\n", args[1], args[0])
			return nil
		}

		fmt.Printf("%s failed validation against %s:\n", args[1], args[0])
		for _, issue := range result.Errors {
			if issue.InstancePath != "" {
				fmt.Printf("  %s: %s\n", issue.InstancePath, issue.Message)
			} else {
				fmt.Printf("  %s\n", issue.Message)
			}
		}
		os.Exit(1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
