package storefront

import (
	"context"
	"net/http"
	"strings"
	"time"

	"lemonstand/pkg/kit"
)

type ctxKey string

const sessionKey ctxKey = "session"

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}

// RequireSession resolves the bearer token to a live session.
func RequireSession(tokens *TokenMaker, store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			now := time.Now()
			sess, found := store.Get(claims.SessionID)
			if !found || sess.expired(now) {
				kit.WriteError(w, r, http.StatusNotFound, "session not found", nil)
				return
			}
			sess.touch(now)

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
