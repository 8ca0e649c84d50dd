// Package audit records security-relevant auth events as structured log
// lines enriched with request and user context.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"tasklane.app/internal/auth"
	"tasklane.app/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// LogEvent emits one flat audit line. Caller fields land at the top
// level of the entry; the reserved keys (ts, type, event, request_id,
// user_id, org_id) are written last so callers cannot shadow them.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name required")
	}

	entry := make(map[string]any, len(fields)+6)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["type"] = "audit"
	entry["event"] = event
	if rid := requestID(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		if claims.UserID != "" {
			entry["user_id"] = claims.UserID
		}
		if claims.OrgID != "" {
			entry["org_id"] = claims.OrgID
		}
	}

	obs.LogEvent(entry)
	return nil
}
