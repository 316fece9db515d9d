package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/juju/clock"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/handler"
	"github.com/sakif/bookburst/internal/notify"
	"github.com/sakif/bookburst/internal/route"
	"github.com/sakif/bookburst/internal/server"
	"github.com/sakif/bookburst/internal/service"
)

func newSignupCmd() *cobra.Command {
	var email, username string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: "Create an account in the configured database. The password is read " +
			"from the terminal without echo, or from the first line of stdin when " +
			"stdin is not a terminal.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			password, err := readNewPassword(cmd)
			if err != nil {
				return err
			}

			db, err := server.OpenDB(cfg.DBPath, clock.WallClock)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			passwords := auth.NewPasswordService()
			if err := service.SeedIdentity(ctx, db.Users(), passwords, logger); err != nil {
				return err
			}

			sessions, err := service.NewSessionService(ctx, service.SessionDeps{
				Users:     db.Users(),
				Store:     db,
				Passwords: passwords,
				Notifier:  notify.Log{Logger: logger},
				Navigator: route.ContextNavigator{},
				Clock:     clock.WallClock,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			identity, err := sessions.Signup(ctx, email, password, username)
			if err != nil {
				return fmt.Errorf("signup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s <%s> (id %s)\n", identity.Username, identity.Email, identity.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address to sign in with")
	cmd.Flags().StringVar(&username, "username", "", "public username, at least 3 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// readNewPassword prompts twice when the command's input is a terminal.
// Any other input is read once, up to the first newline.
func readNewPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return checkPassword(strings.TrimRight(line, "\r\n"))
	}

	fd := int(f.Fd())
	first, err := promptPassword(cmd, fd, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassword(cmd, fd, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return checkPassword(first)
}

func promptPassword(cmd *cobra.Command, fd int, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}

func checkPassword(p string) (string, error) {
	if len(p) < handler.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", handler.MinPasswordLength)
	}
	return p, nil
}
