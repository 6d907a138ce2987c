package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"fitlog/internal/app"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readPassword is swapped out in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var name, email string
	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user account",
		Long:  `Create a user account with a password, even when self-service registration is closed.`,
		Example: `fitlog user create alice
fitlog user create bob --name "Bob" --email bob@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			password, err := promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer b.Close() //nolint: errcheck

			authSvc := app.NewAuthService(b.store, b.sessions)
			user, err := authSvc.CreateUser(ctx, args[0], password, name, email)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			log.Info("user created", "id", user.ID, "username", user.Username)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", user.Username, user.ID)
			return err
		},
	}
	createCmd.Flags().StringVar(&name, "name", "", "Display name")
	createCmd.Flags().StringVar(&email, "email", "", "Email address")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func promptPassword(w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec

	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(w, "Confirm password: ")
	confirm, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if !bytes.Equal(pw, confirm) {
		return "", errors.New("passwords do not match")
	}
	if len(pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(pw), nil
}
