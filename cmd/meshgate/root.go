package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "meshgate",
	Short: "API gateway for REST services and event buses",
	Long: `meshgate - A single ingress point that authenticates callers, resolves a
route key to a downstream service, and forwards to REST services or publishes to
an event bus behind a uniform response envelope.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
}

func initConfig() {
	config.Init(cfgFile)
}
