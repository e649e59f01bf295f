package web

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockcount/internal/core"
	"github.com/JonMunkholm/stockcount/internal/logging"
)

// Operator headers set by the counting client after sign-in.
const (
	headerOperatorEmail = "X-Operator-Email"
	headerOperatorName  = "X-Operator-Name"
)

// withRequestMetadata adds the client IP and User-Agent for journaling.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already rewritten by TrustedRealIP
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return core.ContextWithRequestMeta(ctx, core.RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	})
}

// operatorFrom reads the operator headers.
func operatorFrom(r *http.Request) core.Operator {
	return core.Operator{
		Email: strings.TrimSpace(r.Header.Get(headerOperatorEmail)),
		Name:  strings.TrimSpace(r.Header.Get(headerOperatorName)),
	}
}

// requestContext attaches journal metadata and the operator to the request
// context for every /api route.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withRequestMetadata(r.Context(), r)
		if email := operatorFrom(r).Email; email != "" {
			ctx = logging.ContextWithOperator(ctx, strings.ToLower(email))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
