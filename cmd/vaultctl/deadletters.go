package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"commitvault/internal/deadletter"

	"github.com/spf13/cobra"
)

var deadLetterPath string

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "Finalizing calls the relayer could not submit",
}

var deadLettersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := envDefault(deadLetterPath, "STORAGE_DEAD_LETTER_PATH")
		if path == "" {
			return fmt.Errorf("dead letter path is required (--path or STORAGE_DEAD_LETTER_PATH)")
		}
		letters, err := deadletter.NewQueue(path).List()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tVAULT\tACTION\tKIND\tERROR")
		for _, l := range letters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				l.Timestamp.UTC().Format(time.RFC3339), l.VaultID, l.Action, l.Kind, l.Error)
		}
		return w.Flush()
	},
}

func init() {
	deadLettersListCmd.Flags().StringVar(&deadLetterPath, "path", "", "Dead letter directory (default $STORAGE_DEAD_LETTER_PATH)")

	deadLettersCmd.AddCommand(deadLettersListCmd)
	rootCmd.AddCommand(deadLettersCmd)
}
