package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/r0mai/iracing-stats/log"
	ingestCmd "github.com/r0mai/iracing-stats/pkg/cmd/ingest"
	migrateCmd "github.com/r0mai/iracing-stats/pkg/cmd/migrate"
	syncCmd "github.com/r0mai/iracing-stats/pkg/cmd/sync"
	"github.com/r0mai/iracing-stats/pkg/config"
	"github.com/r0mai/iracing-stats/pkg/iracing"
	"github.com/r0mai/iracing-stats/version"
)

const envPrefix = "IRSTATS"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "irstats",
	Short:   "Race result ingestion pipeline for iRacing statistics",
	Long:    ``,
	Version: version.FullVersion,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.irstats.yml)")

	rootCmd.PersistentFlags().StringVar(&config.DB, "db",
		"postgresql://DB_USERNAME:DB_USER_PASSWORD@DB_HOST:5432/iracingstats",
		"Connection string for the database")
	rootCmd.PersistentFlags().StringVar(&config.BaseDir, "base-dir",
		".",
		"Base directory for cached race documents")
	rootCmd.PersistentFlags().StringVar(&config.BaseURL, "base-url",
		iracing.DefaultBaseURL,
		"Base URL of the upstream statistics API")
	rootCmd.PersistentFlags().StringVar(&config.Username, "username",
		"",
		"Email used for upstream authentication")
	rootCmd.PersistentFlags().StringVar(&config.Token, "token",
		"",
		"Encoded password used for upstream authentication")
	rootCmd.PersistentFlags().StringVar(&config.WaitForServices,
		"wait-for-services",
		"15s",
		"Duration to wait for other services to be ready")
	rootCmd.PersistentFlags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&config.SQLLogLevel,
		"sql-log-level",
		"debug",
		"controls the log level for sql methods")
	rootCmd.PersistentFlags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format (json, text)")
	rootCmd.PersistentFlags().StringVar(&config.LogConfig,
		"log-config",
		"",
		"path to optional logger config file")

	// add commands here
	rootCmd.AddCommand(migrateCmd.NewMigrateCmd())
	rootCmd.AddCommand(syncCmd.NewSyncCmd())
	rootCmd.AddCommand(ingestCmd.NewIngestCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".irstats" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".irstats")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}

	if config.LogConfig != "" {
		if err := log.LoadConfig(config.LogConfig); err != nil {
			fmt.Fprintln(os.Stderr, "Could not load log config:", err)
		}
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them to their
		// equivalent keys with underscores, e.g. --base-dir to IRSTATS_BASE_DIR
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not set and viper
		// has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
