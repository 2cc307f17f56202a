package users_test

import (
	"testing"

	"github.com/jrsteele09/cloudhub-session/users"
	"github.com/stretchr/testify/require"
)

func TestWireUser_ToProfile(t *testing.T) {
	t.Run("maps name to full name", func(t *testing.T) {
		p := users.WireUser{ID: "1", Email: "john@example.com", Name: "John Doe"}.ToProfile()
		require.Equal(t, "1", p.ID)
		require.Equal(t, "John Doe", p.FullName)
		require.Nil(t, p.FullContext)
	})

	t.Run("falls back to full_name", func(t *testing.T) {
		p := users.WireUser{ID: "1", FullName: "Jane Roe"}.ToProfile()
		require.Equal(t, "Jane Roe", p.FullName)
	})

	t.Run("organization builds full context", func(t *testing.T) {
		p := users.WireUser{
			ID:               "7",
			Email:            "org@example.com",
			Name:             "Org Owner",
			Role:             users.RoleOrganizer,
			OrganizationName: "CloudHub",
		}.ToProfile()

		require.NotNil(t, p.FullContext)
		require.Equal(t, users.FullContext{
			ID:               "7",
			Email:            "org@example.com",
			Name:             "Org Owner",
			OrganizationName: "CloudHub",
		}, *p.FullContext)
		require.True(t, p.IsOrganizer())
	})
}

func TestProfile_EncodeOmitsMissingContext(t *testing.T) {
	raw, err := users.WireUser{ID: "1", Email: "a@b.c", Name: "A"}.ToProfile().Encode()
	require.NoError(t, err)
	require.NotContains(t, raw, "full_context")

	decoded, err := users.DecodeProfile(raw)
	require.NoError(t, err)
	require.Equal(t, "A", decoded.FullName)
	require.Nil(t, decoded.FullContext)
}

func TestDecodeProfile_Invalid(t *testing.T) {
	_, err := users.DecodeProfile("{not json")
	require.Error(t, err)
}

func TestRoleType_Valid(t *testing.T) {
	require.True(t, users.RoleParticipant.Valid())
	require.True(t, users.RoleMentor.Valid())
	require.False(t, users.RoleType("super_admin").Valid())

	var nilProfile *users.Profile
	require.False(t, nilProfile.HasRole(users.RoleAdmin))
}
