package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/cloudhub-session/token"
	"github.com/spf13/cobra"
)

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user, refreshed from the API when reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}
			profile, err := m.Restore(ctx)
			if err != nil {
				return err
			}
			if profile == nil {
				info("Not logged in")
				return nil
			}
			fmt.Println(displayName(profile))
			if profile.Role != "" {
				info("Role:           %s", profile.Role)
			}
			if profile.OrganizationName != "" {
				info("Organization:   %s", profile.OrganizationName)
			}
			info("Email verified: %t", profile.EmailVerified)
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is stored locally, without calling the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}
			s, err := m.Session(ctx)
			if err != nil {
				return err
			}

			info("API:            %s", a.cfg.GetAPIBaseURL())
			info("Session store:  %s", a.cfg.GetSessionDBPath())
			if !s.IsAuthenticated() {
				info("Authenticated:  no")
				return nil
			}
			info("Authenticated:  yes")
			info("User:           %s", displayName(s.User))
			if exp := s.Expiry(); !exp.IsZero() {
				info("Token expires:  %s (in %s)", exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Second))
			}
			return nil
		},
	}
}

func (a *app) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Reset a forgotten password",
	}

	request := &cobra.Command{
		Use:   "request <email>",
		Short: "Email a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.RequestPasswordReset(cmd.Context(), args[0]); err != nil {
				return errors.New(token.UserMessage(err))
			}
			success("If the account exists, a reset token is on its way")
			return nil
		},
	}

	var password, confirm string
	confirmCmd := &cobra.Command{
		Use:   "confirm <token>",
		Short: "Set a new password with the mailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if password, err = passwordValue(password); err != nil {
				return err
			}
			if confirm, err = promptValue(confirm, "Confirm password"); err != nil {
				return err
			}
			if err := m.ConfirmPasswordReset(cmd.Context(), args[0], password, confirm); err != nil {
				return errors.New(token.UserMessage(err))
			}
			success("Password changed. Run `cloudhub login` with the new password.")
			return nil
		},
	}
	confirmCmd.Flags().StringVarP(&password, "password", "p", "", "New password (prompted when omitted)")
	confirmCmd.Flags().StringVar(&confirm, "confirm", "", "New password again (prompted when omitted)")

	cmd.AddCommand(request, confirmCmd)
	return cmd
}

func (a *app) verifyEmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-email <token>",
		Short: "Confirm the email address with the mailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.VerifyEmail(cmd.Context(), args[0]); err != nil {
				return errors.New(token.UserMessage(err))
			}
			success("Email verified")
			return nil
		},
	}
}

// apiCmd calls any API path with the stored session, as the UI's data fetching does
func (a *app) apiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Call the CloudHub API with the stored session",
	}

	get := &cobra.Command{
		Use:   "get <path>",
		Short: "GET a path relative to the API base URL and print the JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}
			if err := m.EnsureFresh(ctx); err != nil {
				a.logger.Debug().Err(err).Msg("proactive refresh failed")
			}

			var out json.RawMessage
			if err := m.API().Get(ctx, args[0], &out); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.AddCommand(get)
	return cmd
}
