package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	apperrors "treecert/internal/errors"
	"treecert/internal/models"
)

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the certificate service is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		health, err := svcs.Client.CheckHealth(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", health.Status, health.Message)
		if !health.IsOK() {
			return fmt.Errorf("service reported status %q", health.Status)
		}
		return nil
	},
}

// ── fetch ────────────────────────────────────────────────────────────────────

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch <file name>",
	Short: "Read a saved certificate back from Cloud Storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		if svcs.Storage == nil {
			return fmt.Errorf("fetch needs SAVE_TARGET=gcs")
		}
		doc, err := svcs.Storage.FetchFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := fetchOut
		if out == "" {
			out = args[0]
		}
		return os.WriteFile(out, doc, 0o644)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "local path (default: the file name)")
}

// ── history ──────────────────────────────────────────────────────────────────

var (
	historyID     string
	historyTreeID string
	historyLimit  int
	historyPage   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List issued certificates from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := initServices(cmd)
		if err != nil {
			return err
		}
		defer svcs.Close()

		if svcs.Ledger == nil {
			return fmt.Errorf("history needs LEDGER_ENABLED=true")
		}

		var entries []*models.IssuedCertificate
		if historyID != "" {
			entry, err := svcs.Ledger.Get(cmd.Context(), historyID)
			if err != nil {
				return fmt.Errorf("certificate %s: %w", historyID, err)
			}
			entries = append(entries, entry)
		} else if historyTreeID != "" {
			entries, err = svcs.Ledger.FindByTreeID(cmd.Context(), historyTreeID)
		} else {
			entries, err = svcs.Ledger.List(cmd.Context(), historyLimit, historyPage)
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		printHistory(cmd, entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyID, "id", "", "show a single ledger entry")
	historyCmd.Flags().StringVar(&historyTreeID, "tree-id", "", "only certificates for this tree")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "entries per page")
	historyCmd.Flags().IntVar(&historyPage, "page", 0, "page number, starting at 0")
	historyCmd.MarkFlagsMutuallyExclusive("id", "tree-id")
}

func printHistory(cmd *cobra.Command, entries []*models.IssuedCertificate) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ISSUED\tTREE\tOWNER\tFILE\tLOCATION")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.IssuedAt.Local().Format(time.DateTime), e.TreeID, e.Owner, e.FileName, e.Location)
	}
	w.Flush()
}
