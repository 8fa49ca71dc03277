package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_DefaultsToNop(t *testing.T) {
	if l := FromContext(context.Background()); l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestFromContextOr(t *testing.T) {
	fallback := zap.NewNop()
	if got := FromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected fallback without logger in context")
	}

	stored := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContextOr(ctx, fallback); got != stored {
		t.Error("expected stored logger")
	}
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := With(context.Background(), zap.New(core), zap.String("request_id", "r-1"))
	ctx = With(ctx, zap.NewNop(), zap.String("query_id", "q-1"))

	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "r-1" || fields["query_id"] != "q-1" {
		t.Errorf("fields = %v", fields)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
	}{
		{"prod", "prod", "", false},
		{"local with level", "local", "debug", false},
		{"unknown env", "staging", "", true},
		{"bad level", "dev", "loud", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLogger(tt.env, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
