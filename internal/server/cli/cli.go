// Package cli exposes the portal server as a cobra command tree:
// serve, migrate and reset-password.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/enrollportal/internal/server"
	"github.com/dmitrijs2005/enrollportal/internal/server/config"
	"github.com/dmitrijs2005/enrollportal/internal/shared"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runner is the part of server.App the commands drive.
type runner interface {
	Run(ctx context.Context) error
	Migrate(ctx context.Context) error
	ResetPassword(ctx context.Context, email, password string) error
	Close() error
}

// newApp is a test seam around server.NewApp.
var newApp = func(cfg *config.Config) (runner, error) {
	return server.NewApp(cfg)
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// Execute runs the root command with os.Args.
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Course enrollment portal server",
		SilenceUsage: true,
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newResetPasswordCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve HTTP and gRPC health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app runner) error {
				return app.Run(ctx)
			})
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app runner) error {
				return app.Migrate(ctx)
			})
		},
	}
}

func newResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := promptPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app runner) error {
				if err := app.ResetPassword(ctx, strings.TrimSpace(email), password); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// withApp loads the configuration from the command's flags, builds the app
// and closes it once fn returns.
func withApp(cmd *cobra.Command, fn func(context.Context, runner) error) (err error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close())
	}()

	return fn(cmd.Context(), app)
}

// promptPassword reads the new password twice without echo.
func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "New password: ")
	first, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer shared.WipeByteArray(first)

	fmt.Fprint(w, "Repeat password: ")
	second, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	defer shared.WipeByteArray(second)

	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}
