package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/reperto-cdss-client/internal/caselist"
	"github.com/reperto-cdss-client/internal/config"
	"github.com/reperto-cdss-client/internal/domain"
	"github.com/reperto-cdss-client/internal/render"
	"github.com/reperto-cdss-client/internal/store"
	"github.com/reperto-cdss-client/pkg/backend"
)

const version = "1.0.0"

// app carries the wired dependencies shared by all commands.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	store  *store.Store
	api    backend.API
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "reperto",
		Short:         "Reperto clinical decision support client",
		Long:          "Analyze patient narratives, review suggested rubrics and browse saved cases against a Reperto backend.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newSignupCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newCasesCommand(a),
		newCaseCommand(a),
		newAnalyzeCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reperto %s\n", version)
		},
	}
}

func newSignupCommand(a *app) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a practitioner account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.Signup(cmd.Context(), name, email, password); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run 'reperto login' to sign in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (minimum 6 characters)")
	return cmd
}

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return userError(err)
			}
			if err := a.store.SaveSession(cmd.Context(), result.AccessToken, result.User.Name); err != nil {
				return err
			}
			name := result.User.Name
			if name == "" {
				name = email
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.ClearSession(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated practitioner profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.warnIfExpired(cmd); err != nil {
				return err
			}
			profile, err := a.api.Me(cmd.Context())
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", profile.Name, profile.Email)
			return nil
		},
	}
}

func newCasesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cases",
		Short: "List saved cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.warnIfExpired(cmd); err != nil {
				return err
			}
			svc := caselist.NewService(a.api, a.store, a.logger)

			// The cached name renders immediately, before the fresh fetch.
			if cached := svc.CachedName(cmd.Context()); cached != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Cases for %s\n", cached)
			}

			snap, _ := svc.Refresh(cmd.Context())
			if snap.ProfileErr != nil {
				a.logger.WithError(snap.ProfileErr).Warn("Profile fetch failed")
			}
			if snap.CasesErr != nil {
				return userError(snap.CasesErr)
			}
			if len(snap.Cases) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved cases.")
				return nil
			}
			for _, cs := range snap.Cases {
				fmt.Fprintln(cmd.OutOrStdout(), render.CaseLine(cs))
			}
			return nil
		},
	}
}

func newCaseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "case <id>",
		Short: "Show a saved case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.warnIfExpired(cmd); err != nil {
				return err
			}
			svc := caselist.NewService(a.api, a.store, a.logger)
			snap, _ := svc.Refresh(cmd.Context())
			if snap.CasesErr != nil {
				return userError(snap.CasesErr)
			}

			cs, ok := svc.Lookup(args[0])
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s not found. Run 'reperto cases' to list saved cases.\n", args[0])
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), render.CaseDetail(cs))
			return nil
		},
	}
}

// warnIfExpired refuses authenticated commands when the stored token has a
// readable exp claim in the past, so the user gets a clear message instead
// of a backend rejection.
func (a *app) warnIfExpired(cmd *cobra.Command) error {
	token, err := a.store.Token(cmd.Context())
	if err != nil {
		return err
	}
	if store.TokenExpired(token, time.Now()) {
		return fmt.Errorf("session expired, run 'reperto login' to sign in again")
	}
	return nil
}

// userError converts backend and validation failures into the message shown
// to the practitioner: backend detail when supplied, a generic message
// otherwise.
func userError(err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.UserMessage())
	}
	if domain.IsValidation(err) {
		return err
	}
	return errors.New("the service is unreachable, please try again")
}

func promptLine(reader *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
