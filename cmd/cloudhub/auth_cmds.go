package main

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/cloudhub-session/authapi"
	"github.com/jrsteele09/cloudhub-session/token"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/spf13/cobra"
)

func (a *app) loginCmd() *cobra.Command {
	var (
		phone       string
		countryCode string
		password    string
		rememberMe  bool
	)

	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in with an email or phone number",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}

			pw, err := passwordValue(password)
			if err != nil {
				return err
			}

			var profile *users.Profile
			if phone != "" {
				profile, err = m.LoginWithPhone(ctx, countryCode, phone, pw, token.WithRememberMe(rememberMe))
			} else {
				var email string
				if len(args) > 0 {
					email = args[0]
				}
				email, err = promptValue(email, "Email")
				if err != nil {
					return err
				}
				profile, err = m.Login(ctx, email, pw, token.WithRememberMe(rememberMe))
			}
			if err != nil {
				return errors.New(token.UserMessage(err))
			}

			displayAppname(a.cfg.GetAppName())
			success("Logged in as %s", displayName(profile))
			return nil
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Log in with this phone number instead of an email")
	cmd.Flags().StringVar(&countryCode, "country-code", "", "Country calling code for --phone (e.g. +971)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
	cmd.Flags().BoolVar(&rememberMe, "remember-me", false, "Ask for a long lived refresh token")
	cmd.MarkFlagsRequiredTogether("phone", "country-code")

	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var (
		req      authapi.RegisterRequest
		role     string
		password string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a CloudHub account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}

			if req.Email, err = promptValue(req.Email, "Email"); err != nil {
				return err
			}
			if req.FullName, err = promptValue(req.FullName, "Full name"); err != nil {
				return err
			}
			if req.Password, err = passwordValue(password); err != nil {
				return err
			}
			req.Role = users.RoleType(role)

			profile, loggedIn, err := m.Register(ctx, req)
			if err != nil {
				return errors.New(token.UserMessage(err))
			}
			success("Account created for %s", displayName(profile))
			if !loggedIn {
				info("Check your email to verify the account, then run `cloudhub login`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "Full name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, at least 8 characters (prompted when omitted)")
	cmd.Flags().StringVar(&role, "role", string(users.RoleParticipant), "organizer, participant, judge, mentor or media")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Country, "country", "", "Country")
	cmd.Flags().StringVar(&req.OrganizationName, "organization-name", "", "Organization (organizers only)")
	cmd.Flags().StringVar(&req.OrganizationWebsite, "organization-website", "", "Organization website (organizers only)")
	cmd.Flags().BoolVar(&req.AcceptedTerms, "accept-terms", false, "Accept the terms and conditions")
	cmd.Flags().BoolVar(&req.AcceptedPrivacyPolicy, "accept-privacy-policy", false, "Accept the privacy policy")

	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.Logout(cmd.Context()); err != nil {
				return err
			}
			success("Logged out")
			return nil
		},
	}
}

func (a *app) logoutAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "End every session of this account, on all devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := m.LogoutAll(cmd.Context()); err != nil {
				warn("The server could not be told: %s", token.UserMessage(err))
			}
			success("Logged out everywhere")
			return nil
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.session(ctx)
			if err != nil {
				return err
			}
			if err := m.Refresh(ctx); err != nil {
				return errors.New(token.UserMessage(err))
			}
			s, err := m.Session(ctx)
			if err != nil {
				return err
			}
			success("Session refreshed")
			if exp := s.Expiry(); !exp.IsZero() {
				info("Access token valid until %s", exp.Local().Format("15:04:05"))
			}
			return nil
		},
	}
}

func displayName(p *users.Profile) string {
	if p == nil {
		return "unknown user"
	}
	if p.FullName != "" {
		return fmt.Sprintf("%s <%s>", p.FullName, p.Email)
	}
	return p.Email
}
