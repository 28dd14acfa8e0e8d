package middleware

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/rxstock/internal/core"
)

// OperatorHeader names the operator for the audit trail.
const OperatorHeader = "X-Operator"

// RequestIdentity stores the client IP, user agent and operator in the
// request context, where the audit log picks them up.
func RequestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), r.RemoteAddr)
		ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
		if op := strings.TrimSpace(r.Header.Get(OperatorHeader)); op != "" {
			if len(op) > 128 {
				op = op[:128]
			}
			ctx = core.ContextWithOperator(ctx, op)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SecurityHeaders sets the headers every API response carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
