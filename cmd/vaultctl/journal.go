package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"commitvault/internal/journal"

	"github.com/spf13/cobra"
)

var (
	journalPath string
	journalJSON bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Local ledger journal",
}

var journalInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List the calls committed to a file journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := envDefault(journalPath, "STORAGE_JOURNAL_PATH")
		if path == "" {
			return fmt.Errorf("journal path is required (--path or STORAGE_JOURNAL_PATH)")
		}
		if _, err := os.Stat(path); err != nil {
			return err
		}
		fj, err := journal.NewFileJournal(path, journal.WithLogger(log))
		if err != nil {
			return err
		}
		defer fj.Close()

		entries, err := fj.Load(cmd.Context())
		if err != nil {
			return err
		}
		log.Debug().Int("entries", len(entries)).Str("path", path).Msg("journal loaded")

		if journalJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tCALLER\tCALL\tARGS\tTX")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s.%s\t%s\t%s\n", e.Seq, e.Caller.Hex(), e.Target, e.Method, e.Args, e.TxRef)
		}
		return w.Flush()
	},
}

func init() {
	journalInspectCmd.Flags().StringVar(&journalPath, "path", "", "Journal file (default $STORAGE_JOURNAL_PATH)")
	journalInspectCmd.Flags().BoolVar(&journalJSON, "json", false, "Print entries as JSON")

	journalCmd.AddCommand(journalInspectCmd)
	rootCmd.AddCommand(journalCmd)
}
