package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/session"
)

type sessionAdmin interface {
	List(ctx context.Context) ([]session.Session, error)
	Revoke(ctx context.Context, identity string) error
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and revoke operator sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRegistry(cmd, func(ctx context.Context, reg sessionAdmin) error {
				return listSessions(ctx, reg, cmd.OutOrStdout(), time.Now())
			})
		},
	})

	revoke := &cobra.Command{
		Use:   "revoke IDENTITY",
		Short: "End an operator's session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			return withRegistry(cmd, func(ctx context.Context, reg sessionAdmin) error {
				if !yes {
					prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
					ok, err := prompter.Confirm(ctx, fmt.Sprintf("Revoke the session of %s?", args[0]))
					if err != nil {
						return err
					}
					if !ok {
						return nil
					}
				}
				if err := reg.Revoke(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Revoked "+session.NormalizeIdentity(args[0])))
				return nil
			})
		},
	}
	revoke.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(revoke)

	return cmd
}

func withRegistry(cmd *cobra.Command, fn func(context.Context, sessionAdmin) error) error {
	ctx := cmd.Context()

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}
	store, err := initSheets(ctx)
	if err != nil {
		return err
	}
	registry, err := newRegistry(store, cfg)
	if err != nil {
		return err
	}
	return fn(ctx, registry)
}

func listSessions(ctx context.Context, reg sessionAdmin, out io.Writer, now time.Time) error {
	sessions, err := reg.List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No sessions"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tSINCE\tLAST SEEN\tSTATE")
	for _, s := range sessions {
		state := "live"
		if s.Expired(now) {
			state = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Identity, formatStamp(s.CreatedAt), formatStamp(s.LastSeen), state)
	}
	return w.Flush()
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
