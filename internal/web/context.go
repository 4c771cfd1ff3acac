package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/opsdash/internal/core"
)

// withRequestMetadata adds the client IP and User-Agent to the context so
// pipeline logs can name the uploader.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}
