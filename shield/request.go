package shield

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/pif/kit"
)

// PageIDHeader lets a caller name the page an upgrade belongs to.
const PageIDHeader = "X-Page-ID"

// RequestIdentity tags each request with the "http" transport and a random
// trace ID (echoed in X-Trace-ID). When the caller sent X-Page-ID, that page
// ID is added too. The tags land in the context through kit and on a
// per-request logger under LoggerKey.
func RequestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := make([]byte, 4)
		rand.Read(id)
		traceID := hex.EncodeToString(id)

		ctx := kit.WithTraceID(kit.WithTransport(r.Context(), "http"), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With("trace_id", traceID, "method", r.Method, "path", r.URL.Path)
		if pageID := r.Header.Get(PageIDHeader); pageID != "" {
			ctx = kit.WithPageID(ctx, pageID)
			w.Header().Set(PageIDHeader, pageID)
			logger = logger.With("page_id", pageID)
		}
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLogger retrieves the per-request logger, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
