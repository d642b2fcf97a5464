package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/gexdex/internal/app"
)

func expiriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expiries SYMBOL",
		Short: "List the expiries offered for SYMBOL with their index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				expiries, err := a.Service.Expiries(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "INDEX\tEXPIRY")
				for i, e := range expiries {
					fmt.Fprintf(tw, "%d\t%s\n", i, e)
				}
				return tw.Flush()
			})
		},
	}
}

func symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List the configured symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tSECURITY ID\tSEGMENT\tSTRIKE STEP\tREFERENCE")
			for _, s := range cfg.SymbolTable().List() {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%g\t%g\n", s.Name, s.SecurityID, s.Segment, s.StrikeStep, s.ReferencePrice)
			}
			return tw.Flush()
		},
	}
}
