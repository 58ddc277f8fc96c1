package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Inspect stored reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored report as json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid report id %q: %w", args[0], err)
		}
		deps, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		r, err := deps.Store.Load(cmd.Context(), id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		list, err := deps.Store.List(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tCREATED")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Status, s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

func init() {
	reportListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of reports")
	reportCmd.AddCommand(reportShowCmd, reportListCmd)
}
