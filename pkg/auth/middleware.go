package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/helpdesk-rbac/pkg/contextkeys"
	"github.com/platinummonkey/helpdesk-rbac/pkg/httputil"
)

// Middleware rejects requests without a valid bearer token
type Middleware struct {
	verifier Verifier
	log      *logrus.Logger
}

// NewMiddleware creates an authentication middleware
func NewMiddleware(verifier Verifier, log *logrus.Logger) *Middleware {
	if log == nil {
		log = logrus.New()
	}
	return &Middleware{verifier: verifier, log: log}
}

// Handler wraps an HTTP handler with authentication
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err != nil {
			httputil.WriteUnauthorized(w, err.Error())
			return
		}

		identity, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.log.WithError(err).WithField("request_id", contextkeys.GetRequestID(r.Context())).
				Warn("Rejected bearer token")
			if errors.Is(err, ErrMissingEmail) {
				httputil.WriteUnauthorized(w, ErrMissingEmail.Error())
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
