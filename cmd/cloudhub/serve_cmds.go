package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/cloudhub-session/internal/apifake"
	"github.com/jrsteele09/cloudhub-session/server"
	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func (a *app) webCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "web",
		Short: "Serve the login and dashboard pages on WEB_ADDR",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			pages, err := server.New(a.cfg, m, server.WithLogger(a.logger))
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metricsHandler())
			mux.Handle("/", pages)

			displayAppname(a.cfg.GetAppName())
			return a.serve(&http.Server{Addr: a.cfg.GetWebAddr(), Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		},
	}
}

// mockAPICmd runs an in-memory CloudHub API for trying the other commands offline
func (a *app) mockAPICmd() *cobra.Command {
	var (
		addr       string
		email      string
		password   string
		accessTTL  time.Duration
		userOnly   bool
		pathPrefix string
		cost       int
	)

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Serve an in-memory CloudHub API with one seeded account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) > maxPasswordBytes {
				return fmt.Errorf("password is longer than %d bytes", maxPasswordBytes)
			}
			options := []apifake.Option{
				apifake.WithAccessTTL(accessTTL),
				apifake.WithPasswordCost(cost),
				apifake.WithLogger(a.logger),
			}
			if userOnly {
				options = append(options, apifake.WithRegisterUserOnly())
			}
			api := apifake.New(options...)
			seeded := api.AddAccount(password, users.WireUser{
				Email:         email,
				FullName:      "Demo User",
				Role:          users.RoleParticipant,
				EmailVerified: true,
			})
			a.logger.Info().Str("email", seeded.Email).Str("password", password).Msg("seeded account")

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metricsHandler())
			mux.Handle(pathPrefix+"/", http.StripPrefix(pathPrefix, api))
			return a.serve(&http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&pathPrefix, "prefix", "/api", "Path the API is mounted under")
	cmd.Flags().StringVar(&email, "email", "demo@cloudhub.local", "Seeded account email")
	cmd.Flags().StringVar(&password, "password", "password123", "Seeded account password")
	cmd.Flags().DurationVar(&accessTTL, "access-ttl", 30*time.Minute, "Access token lifetime")
	cmd.Flags().IntVar(&cost, "password-cost", bcrypt.DefaultCost, "bcrypt cost of stored passwords")
	cmd.Flags().BoolVar(&userOnly, "register-user-only", false, "Answer registrations with the user only, no tokens")

	return cmd
}

// bcrypt ignores anything past 72 bytes and refuses to hash it
const maxPasswordBytes = 72

func (a *app) metricsHandler() http.Handler {
	reg := a.metricsRegistry()
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (a *app) serve(srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.listenAndServe(srv)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func (a *app) listenAndServe(srv *http.Server) error {
	a.logger.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
