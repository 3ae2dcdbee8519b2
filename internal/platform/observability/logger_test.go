package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerContextRoundTrip(t *testing.T) {
	logger := zap.NewExample()

	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("FromContext returned %v, want the injected logger", got)
	}
}

func TestFromContextDefaultsToNoop(t *testing.T) {
	got := FromContext(context.Background())
	if got == nil {
		t.Fatal("FromContext returned nil")
	}
	if got.Core().Enabled(zap.InfoLevel) {
		t.Error("expected a no-op logger for a bare context")
	}
}
