package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rollcall/internal/platform/config"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Attendance registry client",
	Long: `rollcall manages a class roster and attendance counts recorded in a
registry on an external ledger. It serves an HTTP API over a locally cached
view of the registry and submits changes as ledger transactions.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(func() { config.Bind(v) })
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	return config.Load(v, cfgFile)
}
