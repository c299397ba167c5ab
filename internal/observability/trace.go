package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// TraceHeader carries the request trace id in and out of the HTTP API.
const TraceHeader = "X-Trace-ID"

type traceKey struct{}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func NewTraceID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}
