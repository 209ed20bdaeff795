package middleware

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/auth"
)

// AccessToken guards the web UI and API with a single shared token, checked
// against an argon2id hash from auth.HashAccessToken. The token may be sent
// as X-API-Key, as a bearer token, or as the basic-auth password so a browser
// can prompt for it. An empty hash disables the check.
//
// argon2id is deliberately slow, so digests of tokens that verified once are
// remembered for the lifetime of the middleware.
func AccessToken(hash string) func(http.Handler) http.Handler {
	var verified sync.Map // [sha256.Size]byte -> struct{}

	check := func(token string) bool {
		sum := sha256.Sum256([]byte(token))
		if _, ok := verified.Load(sum); ok {
			return true
		}
		if !auth.VerifyAccessToken(token, hash) {
			return false
		}
		verified.Store(sum, struct{}{})
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hash == "" {
				next.ServeHTTP(w, r.WithContext(withAuthMethod(r.Context(), AuthMethodNone)))
				return
			}

			token, method := extractToken(r)
			if token != "" && check(token) {
				next.ServeHTTP(w, r.WithContext(withAuthMethod(r.Context(), method)))
				return
			}

			if token != "" {
				log.Warn().Str("method", method).Str("remote", r.RemoteAddr).Msg("auth: rejected access token")
			}

			w.Header().Set("WWW-Authenticate", `Basic realm="vibe", charset="UTF-8"`)
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"missing or invalid access token"}`))
		})
	}
}

func extractToken(r *http.Request) (token, method string) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, AuthMethodAPIKey
	}
	if tok := extractBearer(r); tok != "" {
		return tok, AuthMethodBearer
	}
	if _, pass, ok := r.BasicAuth(); ok && pass != "" {
		return pass, AuthMethodBasic
	}
	return "", ""
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func withAuthMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, ContextKeyAuthMethod, method)
}
