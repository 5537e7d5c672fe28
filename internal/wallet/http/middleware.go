package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/xian-network/go-uwp/internal/wallet/domain"
	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

type sessionCtxKey struct{}

// Authn validates the bearer token against the session store and enforces
// the required permission. The validated session is stored on the request
// context; authenticated activity refreshes the session's last_activity.
func Authn(sessions *service.SessionStore, required protocol.Permission) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				protocol.ErrUnauthorized.WriteError(w)
				return
			}

			session, err := sessions.Validate(token, required)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by Authn, nil outside an
// authenticated handler.
func SessionFromContext(ctx context.Context) *domain.Session {
	session, _ := ctx.Value(sessionCtxKey{}).(*domain.Session)
	return session
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// writeError renders err as a protocol error response, downgrading
// unexpected errors to a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var pe *protocol.Error
	if errors.As(err, &pe) {
		pe.WriteError(w)
		return
	}
	protocol.ErrServerError.WriteError(w)
}
