package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/cloudhub-session/internal/config"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/jrsteele09/cloudhub-session/sessions"
	"github.com/jrsteele09/cloudhub-session/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// app holds what every command shares. The session manager is opened lazily so
// commands like mock-api never touch the credential stores.
type app struct {
	configFile string
	envFile    string
	verbose    bool
	trace      bool

	cfg      config.Config
	tracing  *sdktrace.TracerProvider
	registry *prometheus.Registry
	logger  zerolog.Logger
	stores  *sessions.Stores
	manager *sessions.Manager
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "cloudhub",
		Short: "Log in to CloudHub and keep the session",
		Long: `cloudhub keeps a CloudHub session on this machine.

Tokens are written to every configured store (a local SQLite file, an optional
Redis, and the cookie jar used for API calls) and read back from the first one
holding a complete session.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			if a.trace {
				tp, err := startTracing(os.Stderr, version)
				if err != nil {
					return fmt.Errorf("starting tracing: %w", err)
				}
				a.tracing = tp
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Dotenv file read before the environment")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.trace, "trace", false, "Print a trace span for every auth call to stderr")

	rootCmd.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.logoutAllCmd(),
		a.refreshCmd(),
		a.whoamiCmd(),
		a.statusCmd(),
		a.resetPasswordCmd(),
		a.verifyEmailCmd(),
		a.apiCmd(),
		a.webCmd(),
		a.mockAPICmd(),
	)

	err := rootCmd.Execute()
	if closeErr := a.close(); closeErr != nil {
		a.logger.Warn().Err(closeErr).Msg("closing session stores and tracing")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func (a *app) loadConfig() error {
	options := []config.Option{config.WithEnvFiles(a.envFile)}
	if a.configFile != "" {
		options = append(options, config.WithConfigFile(a.configFile))
	}
	cfg, err := config.New(options...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// session opens the stores and builds the manager on first use
func (a *app) session(ctx context.Context) (*sessions.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}

	mtr := metrics.New(a.metricsRegistry())
	stores, err := sessions.OpenStores(ctx, a.cfg, a.logger, mtr)
	if err != nil {
		return nil, fmt.Errorf("opening session stores: %w", err)
	}

	manager, err := sessions.NewManager(a.cfg, stores.Store, a.navigator(),
		sessions.WithCookieJar(stores.Cookies),
		sessions.WithLogger(a.logger),
		sessions.WithMetrics(mtr),
	)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	a.stores = stores
	a.manager = manager
	return manager, nil
}

// metricsRegistry holds the session counters plus the Go runtime and process
// collectors. The web and mock-api servers expose it on /metrics.
func (a *app) metricsRegistry() *prometheus.Registry {
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return a.registry
}

// navigator is where a terminal "navigates" when the API ends the session
func (a *app) navigator() transport.Navigator {
	return transport.NavigatorFunc(func(path string) {
		warn("Session expired. Run `cloudhub login` to sign in again.")
		a.logger.Debug().Str("path", path).Msg("session ended by the API")
	})
}

func (a *app) close() error {
	var errs []error
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.tracing.Shutdown(ctx))
	}
	if a.stores != nil {
		errs = append(errs, a.stores.Close())
	}
	return errors.Join(errs...)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m!\033[0m %s\n", fmt.Sprintf(format, args...))
}
