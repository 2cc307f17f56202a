// Package cookiestore keeps the session as cookies scoped to the API host. The store is
// also the http.CookieJar of the shared HTTP client, so server-rendered requests carry
// the same access_token, refresh_token and user cookies a browser would send.
package cookiestore

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/cloudhub-session/credentials"
)

var (
	_ credentials.Backend = (*Store)(nil)
	_ http.CookieJar      = (*Store)(nil)
)

const backendName = "cookie"

type Store struct {
	host    string
	secure  bool
	maxAge  time.Duration
	nowTime func() time.Time

	mu      sync.RWMutex
	cookies map[string]*http.Cookie
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithSecure controls the Secure attribute of written cookies. Secure cookies are only
// sent over https.
func WithSecure(secure bool) Option {
	return func(s *Store) {
		s.secure = secure
	}
}

func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Store) {
		s.maxAge = maxAge
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New scopes the cookies to the host of baseURL.
func New(baseURL string, options ...Option) (*Store, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, &url.Error{Op: "parse", URL: baseURL, Err: errMissingHost}
	}

	s := &Store{
		host:    strings.ToLower(u.Hostname()),
		secure:  true,
		maxAge:  7 * 24 * time.Hour,
		nowTime: time.Now,
		cookies: make(map[string]*http.Cookie),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Name() string {
	return backendName
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cookies[key]
	if !ok || s.expired(c) {
		return "", false, nil
	}
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookies[key] = &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		Domain:   s.host,
		Expires:  s.nowTime().Add(s.maxAge),
		MaxAge:   int(s.maxAge.Seconds()),
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.cookies, k)
	}
	return nil
}

// Cookies implements http.CookieJar. Secure cookies are withheld from plain http URLs.
func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	if !s.matches(u) {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if s.expired(c) {
			continue
		}
		if c.Secure && u.Scheme != "https" {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// SetCookies implements http.CookieJar. The server may overwrite or expire any cookie,
// including the session ones.
func (s *Store) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if !s.matches(u) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(s.nowTime())) {
			delete(s.cookies, c.Name)
			continue
		}
		stored := *c
		if stored.Expires.IsZero() && stored.MaxAge > 0 {
			stored.Expires = s.nowTime().Add(time.Duration(stored.MaxAge) * time.Second)
		}
		s.cookies[c.Name] = &stored
	}
}

// Snapshot returns copies of the stored cookies with their full attributes
func (s *Store) Snapshot() []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (s *Store) matches(u *url.URL) bool {
	return u != nil && strings.EqualFold(u.Hostname(), s.host)
}

func (s *Store) expired(c *http.Cookie) bool {
	return !c.Expires.IsZero() && !c.Expires.After(s.nowTime())
}
