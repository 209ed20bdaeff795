package middleware

import "context"

type contextKey string

const ContextKeyAuthMethod contextKey = "auth_method"

// Auth methods recorded on authenticated requests.
const (
	AuthMethodNone   = "none"
	AuthMethodAPIKey = "api_key"
	AuthMethodBearer = "bearer"
	AuthMethodBasic  = "basic"
)

// AuthMethodFromContext reports how the request authenticated. It is false
// when the access token middleware did not run.
func AuthMethodFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyAuthMethod).(string)
	return v, ok
}
