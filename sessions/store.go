package sessions

import (
	"context"
	"errors"

	"github.com/jrsteele09/cloudhub-session/credentials"
	"github.com/jrsteele09/cloudhub-session/credentials/cookiestore"
	"github.com/jrsteele09/cloudhub-session/credentials/redisstore"
	"github.com/jrsteele09/cloudhub-session/credentials/sqlitestore"
	"github.com/jrsteele09/cloudhub-session/internal/config"
	"github.com/jrsteele09/cloudhub-session/internal/metrics"
	"github.com/rs/zerolog"
)

// Stores is the configured credential store plus the handles that need closing
type Stores struct {
	Store   *credentials.MultiStore
	Cookies *cookiestore.Store
	closers []func() error
}

func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStores builds the backends in read priority order: the SQLite file, then Redis
// when SESSION_REDIS_ADDR is set, then cookies. An unreachable Redis is logged and
// skipped; the other backends still serve the session.
func OpenStores(ctx context.Context, cfg config.Config, logger zerolog.Logger, mtr *metrics.Metrics) (*Stores, error) {
	stores := &Stores{}

	durable, err := sqlitestore.New(ctx, cfg.GetSessionDBPath())
	if err != nil {
		return nil, err
	}
	stores.closers = append(stores.closers, durable.Close)
	backends := []credentials.Backend{durable}

	if addr := cfg.GetRedisAddr(); addr != "" {
		shared, err := redisstore.Connect(ctx, addr, cfg.GetRedisPassword(), redisstore.WithTTL(cfg.GetCookieMaxAge()))
		if err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("redis session backend unavailable, continuing without it")
		} else {
			stores.closers = append(stores.closers, shared.Close)
			backends = append(backends, shared)
		}
	}

	cookies, err := cookiestore.New(cfg.GetAPIBaseURL(),
		cookiestore.WithSecure(cfg.GetCookieSecure()),
		cookiestore.WithMaxAge(cfg.GetCookieMaxAge()),
	)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.Cookies = cookies
	backends = append(backends, cookies)

	store, err := credentials.NewMultiStore(backends, credentials.WithLogger(logger), credentials.WithMetrics(mtr))
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	stores.Store = store
	return stores, nil
}
