package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/eventgate/storage"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Inspect the issuance ledger",
	Long:  `Commands for listing and pruning the links recorded by "eventgate mint --ledger".`,
}

var linksJSONOutput bool

var linksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List minted links, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := openLedgerFromConfig(cmd)
		if err != nil {
			return err
		}
		defer ledger.Close()

		issues, err := ledger.List()
		if err != nil {
			return fmt.Errorf("failed to list links: %w", err)
		}
		if linksJSONOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if issues == nil {
				issues = []storage.Issue{}
			}
			return enc.Encode(issues)
		}
		return printIssues(cmd.OutOrStdout(), issues, time.Now())
	},
}

var linksPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired links from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, err := openLedgerFromConfig(cmd)
		if err != nil {
			return err
		}
		defer ledger.Close()

		n, err := storage.Prune(ledger, time.Now())
		if err != nil {
			return fmt.Errorf("failed to prune links: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired link(s)\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
	linksCmd.PersistentFlags().String("ledger", "", "Ledger file written by mint --ledger")
	linksCmd.AddCommand(linksListCmd, linksPruneCmd)
	linksListCmd.Flags().BoolVar(&linksJSONOutput, "json", false, "Output links as JSON")
}

func openLedgerFromConfig(cmd *cobra.Command) (storage.Ledger, error) {
	cfg, err := loadConfig(cmd, map[string]string{"ledger": "ledger.path"})
	if err != nil {
		return nil, err
	}
	if cfg.Ledger.Path == "" {
		return nil, fmt.Errorf("no ledger configured; pass --ledger or set ledger.path")
	}
	ledger, err := openLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return ledger, nil
}

func printIssues(w io.Writer, issues []storage.Issue, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tFINGERPRINT\tISSUED\tEXPIRES\tSTATUS")
	for _, is := range issues {
		status := "active"
		if is.Expired(now) {
			status = "expired"
		}
		label := is.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			is.ID, label, is.Fingerprint,
			is.IssuedAt.Format(time.RFC3339), is.ExpiresAt.Format(time.RFC3339), status)
	}
	return tw.Flush()
}
