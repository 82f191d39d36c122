package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/activity-import/internal/core"
	"github.com/JonMunkholm/activity-import/internal/web/middleware"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for audit
// entries. The IP is the one TrustedRealIP settled on, without the port.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, middleware.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
