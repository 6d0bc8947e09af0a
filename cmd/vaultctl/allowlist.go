package main

import (
	"fmt"

	"commitvault/internal/config"
	"commitvault/internal/dispatch"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var allowListPath string

var allowListCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Dispatch allow-list",
}

var allowListShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective allow-list as YAML",
	Long: `Print the allow-list the service would load. Without --path (or
DISPATCH_ALLOWLIST_PATH) the built-in default is shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := dispatch.DefaultAllowListMap()
		if path := envDefault(allowListPath, "DISPATCH_ALLOWLIST_PATH"); path != "" {
			var err error
			if m, err = config.LoadAllowList(path); err != nil {
				return err
			}
		}
		out, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
		return err
	},
}

func init() {
	allowListShowCmd.Flags().StringVar(&allowListPath, "path", "", "Allow-list YAML file")

	allowListCmd.AddCommand(allowListShowCmd)
	rootCmd.AddCommand(allowListCmd)
}
