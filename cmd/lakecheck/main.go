package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var (
		configPath string
		logLevel   string
		region     string
		profile    string
	)

	root := &cobra.Command{
		Use:     "lakecheck",
		Short:   "Compare legacy and production Athena tables",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&region, "region", "", "override the configured AWS region")
	root.PersistentFlags().StringVar(&profile, "profile", "", "AWS shared config profile to use")

	opts := &globalOptions{
		configPath: &configPath,
		logLevel:   &logLevel,
		region:     &region,
		profile:    &profile,
	}

	root.AddCommand(
		newValidateCmd(opts),
		newValidateSingleCmd(opts),
		newCustomSQLCmd(opts),
		newLLMValidateCmd(opts),
		newCacheCmd(opts),
		newSchemaCmd(opts),
		newSetupCmd(opts),
		newMCPCmd(opts),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
