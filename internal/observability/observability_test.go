package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTraceIDContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background(), "abc123")
	assert.Equal(t, "abc123", TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestDomainMetrics(t *testing.T) {
	before := testutil.ToFloat64(riskRejectionsTotal.WithLabelValues("DROP"))
	IncrementRiskRejections("DROP")
	assert.Equal(t, before+1, testutil.ToFloat64(riskRejectionsTotal.WithLabelValues("DROP")))

	SetEngineCacheEntries(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(engineCacheEntries))
	SetEngineCacheEntries(-1)
	assert.Equal(t, float64(0), testutil.ToFloat64(engineCacheEntries))

	before = testutil.ToFloat64(engineAcquisitionsTotal.WithLabelValues("mysql"))
	IncrementEngineAcquisitions("mysql")
	assert.Equal(t, before+1, testutil.ToFloat64(engineAcquisitionsTotal.WithLabelValues("mysql")))

	ObserveStatement("mysql", "execute", 20*time.Millisecond)
	ObserveHTTPRequest("GET", "/healthz", "200", time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/healthz", "200")))
}
