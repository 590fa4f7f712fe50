// Package cli provides the command-line interface for the ETL run: a cobra
// root command with a viper-backed config file + environment + flag
// cascade, and one subcommand, ingest, that drives a Wikipedia dump through
// the extractor/transformer/loader pipeline.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfgFile holds the path to the configuration file specified via the
// --config flag. When empty, initConfig searches the default locations.
var cfgFile string

// RootCmd is the entry point for the ingestion CLI. It carries no Run of
// its own; ingest is the sole subcommand.
var RootCmd = &cobra.Command{
	Use:   "wikietl",
	Short: "stream a Wikipedia XML dump into a relational store and a search index",
	Long: `wikietl

Extracts pages, revisions, and log items from a MediaWiki XML dump, resolves
contributor identities, and bulk-loads the results into a relational store
and a search index, one language per run.

Configuration can be provided via command-line flags, environment variables
under the WIKIETL_ prefix, or a YAML configuration file, with flags taking
precedence over the environment, which takes precedence over the file.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wikietl.yaml)")

	RootCmd.AddCommand(ingestCmd)
}

// initConfig wires viper's config-file search path and environment mapping.
// A missing config file is not an error: flags and environment variables
// alone are a valid configuration source for a single-operator run.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wikietl")
	}

	viper.SetEnvPrefix("WIKIETL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}
