package log

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateCorrelationID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateCorrelationID()
		assert.Len(t, id, 12)
		for _, c := range id {
			assert.Contains(t, base36Chars, string(c))
		}
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestRequestContext(t *testing.T) {
	ctx := WithRequestContext(context.Background(), "abc", "FetchAccount")

	reqCtx := GetRequestContext(ctx)
	assert.Equal(t, "abc", reqCtx.CorrelationID)
	assert.Equal(t, "FetchAccount", reqCtx.Operation)
	assert.WithinDuration(t, time.Now(), reqCtx.StartTime, time.Second)
	assert.Equal(t, "abc", GetCorrelationID(ctx))
	assert.GreaterOrEqual(t, GetElapsedTime(ctx), int64(0))
}

func TestRequestContext_Missing(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "unknown", GetRequestContext(ctx).CorrelationID)
	assert.Equal(t, "", GetCorrelationID(ctx))
	assert.Equal(t, int64(0), GetElapsedTime(ctx))
}
