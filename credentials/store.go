package credentials

import (
	"context"

	"github.com/jrsteele09/cloudhub-session/users"
)

// Backend is one physical key-value store holding a copy of the session.
// Get reports found=false, not an error, for a missing key. Delete of a missing
// key is not an error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store is the single source of truth for the session. Every write replaces the
// whole session; there are no partial patches.
type Store interface {
	Write(ctx context.Context, session Session) error
	Read(ctx context.Context) (Session, error)
	Clear(ctx context.Context) error
	// CompareAndWrite and CompareAndClear act only while the stored refresh token
	// equals expectRefresh, otherwise returning ErrSessionChanged.
	CompareAndWrite(ctx context.Context, expectRefresh string, session Session) error
	CompareAndClear(ctx context.Context, expectRefresh string) error
	ReplaceUser(ctx context.Context, user *users.Profile) error
}
