package services_test

import (
	"context"
	"testing"

	"vidbridge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithComponent(ctx, "feeder")
	ctx = services.WithRunID(ctx, "run-9")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if component, ok := services.ComponentFromContext(ctx); !ok || component != "feeder" {
		t.Fatalf("unexpected component: %v %v", component, ok)
	}
	if rid, ok := services.RunIDFromContext(ctx); !ok || rid != "run-9" {
		t.Fatalf("unexpected run id: %v %v", rid, ok)
	}
}

func TestComponentBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithComponent(ctx, "")
	if _, ok := services.ComponentFromContext(ctx); ok {
		t.Fatal("expected no component value")
	}
}
