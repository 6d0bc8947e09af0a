package main

import (
	"os"

	"commitvault/internal/logger"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	log      = logger.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Operator tooling for the commitment vault service",
	Long: `vaultctl issues dispatch tokens, signs execution-check requests and
inspects the journal, allow-list and dead letters of a running service.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log = logger.NewLogger("vaultctl", logLevel)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fatal("vaultctl", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}

// envDefault returns v, or the named environment variable when v is empty.
func envDefault(v, name string) string {
	if v != "" {
		return v
	}
	return os.Getenv(name)
}
