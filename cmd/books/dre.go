package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/rollup"
)

func dreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dre",
		Short: "Work with income statements (DRE)",
	}

	cmd.AddCommand(dreRollupCmd())

	return cmd
}

func dreRollupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollup SPREADSHEET_ID...",
		Short: "Consolidate store DRE tabs into one table",
		Long: `Sum the DRE tab of every listed store workbook, line by line and period by
period, and write the result to a table of the configured spreadsheet.

Workbooks without the tab are reported and skipped. The destination table is
rewritten on every run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDRERollup,
	}

	cmd.Flags().String("dest", "", "destination table (required)")
	cmd.Flags().String("table", "DRE", "DRE tab name in each source workbook")
	cmd.Flags().String("line-header", "", "title of the account line column")
	_ = cmd.MarkFlagRequired("dest")

	return cmd
}

func runDRERollup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dest, _ := cmd.Flags().GetString("dest")
	table, _ := cmd.Flags().GetString("table")
	lineHeader, _ := cmd.Flags().GetString("line-header")

	store, err := initSheets(ctx)
	if err != nil {
		return err
	}

	sources := make([]rollup.Source, 0, len(args))
	for _, id := range args {
		sources = append(sources, rollup.Source{
			Name:  id,
			Store: store.Workbook(id),
			Table: table,
		})
	}

	progress := cli.NewProgress(cmd.ErrOrStderr(), len(sources), "Reading DRE tabs")

	result, err := rollup.Consolidate(ctx, sources, rollup.Options{
		Dest:       store,
		DestTable:  dest,
		LineHeader: lineHeader,
		Logger:     slog.Default(),
		Progress:   progress.Track,
	})
	if err != nil {
		return fmt.Errorf("rollup failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderRollupSummary(result))
	return nil
}
