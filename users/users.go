package users

import (
	"encoding/json"
	"fmt"
	"time"
)

// RoleType is the role a user holds on the platform; it decides which dashboard they land on
type RoleType string

const (
	RoleOrganizer   RoleType = "organizer"
	RoleParticipant RoleType = "participant"
	RoleJudge       RoleType = "judge"
	RoleMentor      RoleType = "mentor"
	RoleMedia       RoleType = "media"
	RoleAdmin       RoleType = "admin"
)

// Valid reports whether r is one of the known roles
func (r RoleType) Valid() bool {
	switch r {
	case RoleOrganizer, RoleParticipant, RoleJudge, RoleMentor, RoleMedia, RoleAdmin:
		return true
	}
	return false
}

// WireUser is the user object as the API sends it. Login responses carry full_name,
// /auth/me carries name; either may be present.
type WireUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name,omitempty"`
	FullName         string     `json:"full_name,omitempty"`
	Role             RoleType   `json:"role,omitempty"`
	Status           string     `json:"status,omitempty"`
	EmailVerified    bool       `json:"email_verified,omitempty"`
	PhoneVerified    bool       `json:"phone_verified,omitempty"`
	Avatar           string     `json:"avatar,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	OrganizationName string     `json:"organization_name,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// FullContext is the composed identity used by organizer views. It only exists for
// users affiliated with an organization.
type FullContext struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	OrganizationName string `json:"organization_name"`
}

// Profile is the cached identity of the logged in user
type Profile struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	FullName         string       `json:"full_name"`
	Role             RoleType     `json:"role,omitempty"`
	Status           string       `json:"status,omitempty"`
	Avatar           string       `json:"avatar,omitempty"`
	Phone            string       `json:"phone,omitempty"`
	EmailVerified    bool         `json:"email_verified,omitempty"`
	PhoneVerified    bool         `json:"phone_verified,omitempty"`
	OrganizationName string       `json:"organization_name,omitempty"`
	FullContext      *FullContext `json:"full_context,omitempty"`
}

// ToProfile converts the wire user into the cached profile shape
func (w WireUser) ToProfile() Profile {
	name := w.Name
	if name == "" {
		name = w.FullName
	}

	p := Profile{
		ID:               w.ID,
		Email:            w.Email,
		FullName:         name,
		Role:             w.Role,
		Status:           w.Status,
		Avatar:           w.Avatar,
		Phone:            w.Phone,
		EmailVerified:    w.EmailVerified,
		PhoneVerified:    w.PhoneVerified,
		OrganizationName: w.OrganizationName,
	}

	if w.OrganizationName != "" {
		p.FullContext = &FullContext{
			ID:               w.ID,
			Email:            w.Email,
			Name:             name,
			OrganizationName: w.OrganizationName,
		}
	}
	return p
}

func (p *Profile) HasRole(role RoleType) bool {
	return p != nil && p.Role == role
}

// IsOrganizer returns true if the user manages hackathons rather than entering them
func (p *Profile) IsOrganizer() bool {
	return p.HasRole(RoleOrganizer) || p.HasRole(RoleAdmin)
}

// Encode serializes the profile for a credential backend
func (p Profile) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("[Profile Encode] %w", err)
	}
	return string(b), nil
}

// DecodeProfile parses a profile written by Encode
func DecodeProfile(raw string) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("[DecodeProfile] %w", err)
	}
	return &p, nil
}
