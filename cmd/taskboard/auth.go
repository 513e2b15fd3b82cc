package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func credentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("email", "e", "", "account email")
	cmd.Flags().StringP("password", "p", "", "account password (prompted when empty)")
}

func credentials(a *app, cmd *cobra.Command) (email, password string, err error) {
	email, _ = cmd.Flags().GetString("email")
	password, _ = cmd.Flags().GetString("password")
	if email == "" {
		if email, err = a.prompt("Email"); err != nil {
			return "", "", err
		}
	}
	if password == "" {
		if password, err = a.prompt("Password"); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

func signupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			email, password, err := credentials(a, cmd)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")

			id, err := a.session.SignUp(ctx, email, password, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed up as %s (%s)\n", id.Name(), id.Email)
			return nil
		}),
	}
	credentialFlags(cmd)
	cmd.Flags().StringP("name", "n", "", "display name (defaults to the part of the email before @)")
	return cmd
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			email, password, err := credentials(a, cmd)
			if err != nil {
				return err
			}
			id, err := a.session.SignIn(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", id.Name())
			return nil
		}),
	}
	credentialFlags(cmd)
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ *cobra.Command, _ []string) error {
			a.session.SignOut()
			fmt.Fprintln(a.out, "Signed out")
			return nil
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			id, err := a.signedIn(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n%s\n", id.Name(), id.Email, id.UserID)
			return nil
		}),
	}
}
