package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/icglr-rcm/mindata"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mindata-tools",
	Short: "Schema generation and data tooling for the mineral data service",
	Long: `mindata-tools turns the JSON Schema corpus into a relational DDL,
rebuilds the SQLite database from it, seeds example data and validates
documents against the compiled schemas.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		zap.ReplaceGlobals(logger)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.S().Errorf("%v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("schemas", "", "directory containing the JSON Schema corpus")
	rootCmd.PersistentFlags().String("db", "", "path to the SQLite database file")
	rootCmd.PersistentFlags().String("ddl", "", "path to write the rendered DDL")

	viper.BindPFlag("schemas.dir", rootCmd.PersistentFlags().Lookup("schemas"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("database.ddl_path", rootCmd.PersistentFlags().Lookup("ddl"))
}

// initConfig reads the config file and MINDATA_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MINDATA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		zap.S().Infow("using config file", "path", viper.ConfigFileUsed())
	}
}

// toolsConfig merges defaults with whatever viper picked up from flags,
// config file and environment.
func toolsConfig() (*mindata.Config, error) {
	cfg := mindata.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Schemas.Dir == "" {
		cfg.Schemas.Dir = mindata.DefaultConfig().Schemas.Dir
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = mindata.DefaultConfig().Database.Path
	}
	if cfg.Database.DDLPath == "" {
		cfg.Database.DDLPath = mindata.DefaultConfig().Database.DDLPath
	}
	return cfg, cfg.Validate()
}
