package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-books-must-balance/internal/auth"
	"github.com/Veraticus/the-books-must-balance/internal/cli"
	"github.com/Veraticus/the-books-must-balance/internal/config"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// userStore is the part of the local database the users commands need.
type userStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserActive(ctx context.Context, email string, active bool) error
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage operators allowed to log in",
	}

	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersSetActiveCmd("disable", false))
	cmd.AddCommand(usersSetActiveCmd("enable", true))

	return cmd
}

func usersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Add an operator",
		Long:  `Add an operator. The password is asked for interactively and stored as a bcrypt hash.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			return withUsers(cmd, func(ctx context.Context, users userStore) error {
				prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
				return addUser(ctx, users, auth.NewHasher(0), prompter, cmd.OutOrStdout(), args[0], name)
			})
		},
	}

	cmd.Flags().String("name", "", "display name")

	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List operators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withUsers(cmd, func(ctx context.Context, users userStore) error {
				return listUsers(ctx, users, cmd.OutOrStdout())
			})
		},
	}
}

func usersSetActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, func(ctx context.Context, users userStore) error {
				if err := users.SetUserActive(ctx, args[0], active); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s %sd", args[0], use)))
				return nil
			})
		},
	}
}

func withUsers(cmd *cobra.Command, fn func(context.Context, userStore) error) error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return err
	}

	db, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return fn(cmd.Context(), db)
}

type secretAsker interface {
	AskSecret(ctx context.Context, question string) (string, error)
}

func addUser(ctx context.Context, users userStore, hasher *auth.Hasher, prompter secretAsker, out io.Writer, email, name string) error {
	password, err := prompter.AskSecret(ctx, "Password")
	if err != nil {
		return err
	}
	confirm, err := prompter.AskSecret(ctx, "Repeat password")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		Active:       true,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		return err
	}

	fmt.Fprintln(out, cli.FormatSuccess("Added "+user.Email))
	return nil
}

func listUsers(ctx context.Context, users userStore, out io.Writer) error {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, cli.FormatInfo("No operators yet. Add one with: books users add EMAIL"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tACTIVE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.Email, u.DisplayName, u.Active, u.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
