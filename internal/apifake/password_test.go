package apifake

import (
	"strings"
	"testing"

	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAddAccount_StoresBcryptHash(t *testing.T) {
	s := New()
	s.AddAccount("secret", users.WireUser{Email: "John@Example.com"})

	acc := s.accounts["john@example.com"]
	require.NotNil(t, acc)
	require.NotEqual(t, "secret", string(acc.passwordHash))

	cost, err := bcrypt.Cost(acc.passwordHash)
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)

	require.True(t, acc.checkPassword("secret"))
	require.False(t, acc.checkPassword("Secret"))
}

func TestAddAccount_PasswordCost(t *testing.T) {
	s := New(WithPasswordCost(bcrypt.MinCost + 1))
	s.AddAccount("secret", users.WireUser{Email: "john@example.com"})

	cost, err := bcrypt.Cost(s.accounts["john@example.com"].passwordHash)
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost+1, cost)
}

func TestAddAccount_PanicsPastBcryptLimit(t *testing.T) {
	s := New()
	require.Panics(t, func() {
		s.AddAccount(strings.Repeat("x", 73), users.WireUser{Email: "john@example.com"})
	})
}
