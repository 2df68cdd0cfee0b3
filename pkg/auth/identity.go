package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing bearer token")

	// ErrMissingEmail is returned when a verified token names no usable email
	ErrMissingEmail = errors.New("token carries no email claim")
)

// Identity is the verified caller
type Identity struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Verifier turns a raw bearer token into an Identity
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// tokenClaims are the ID token claims the service reads. Entra ID puts the
// sign-in name in preferred_username and not every account has email.
type tokenClaims struct {
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	Name              string `json:"name"`
}

func (c tokenClaims) identity(subject string) (*Identity, error) {
	email := firstNonEmpty(c.Email, c.PreferredUsername, c.UPN)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrMissingEmail
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = email
	}

	return &Identity{
		Subject:     subject,
		Email:       email,
		DisplayName: name,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// WithIdentity stores the identity in ctx
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	if identity != nil {
		ctx = contextkeys.WithUserID(ctx, identity.Email)
	}
	return ctx
}

// IdentityFromContext returns the verified caller, or nil
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(contextkeys.IdentityKey).(*Identity)
	return identity
}
