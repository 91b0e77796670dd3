package authkit

import (
	"context"

	"github.com/tyemirov/timebank-admin/pkg/jsonid"
)

// IdentityProvider is the upstream authority that issues and validates sessions.
type IdentityProvider interface {
	Login(ctx context.Context, credentials LoginCredentials) (LoginResult, error)
	CurrentUser(ctx context.Context, accessToken string) (UpstreamUser, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// LoginCredentials is the body accepted by the login endpoint.
type LoginCredentials struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Remember   bool   `json:"remember"`
}

// UpstreamUser is the user record reported by the upstream API. The id may arrive as a number.
type UpstreamUser struct {
	ID    jsonid.ID `json:"id,omitempty"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role"`
}

// TokenPair carries the tokens returned by login and refresh. Either side may be empty after a refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Empty reports whether neither token is present.
func (pair TokenPair) Empty() bool {
	return pair.AccessToken == "" && pair.RefreshToken == ""
}

// LoginResult is a successful upstream login.
type LoginResult struct {
	User UpstreamUser
	TokenPair
}
