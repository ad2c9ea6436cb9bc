package appctx

import (
	"context"
	"errors"
	"testing"

	"github.com/dukaflow/retailer_backend/tier"
)

func TestSession_Bind(t *testing.T) {
	ctx := context.Background()
	if RetailerId(ctx) != "" {
		t.Fatalf("empty context carries a retailer")
	}
	if _, err := SessionFromContext(ctx); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	sess := Session{ID: "sess-1", RetailerId: "ret-1", UserId: 7, Tier: tier.Standard}
	bound := sess.Bind(ctx)
	if RetailerId(bound) != "ret-1" {
		t.Fatalf("retailer id = %q", RetailerId(bound))
	}
	got, err := SessionFromContext(bound)
	if err != nil || got != sess {
		t.Fatalf("SessionFromContext = %+v, %v", got, err)
	}

	if _, err := SessionFromContext(Session{ID: "anon"}.Bind(ctx)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("session without a retailer must not count, got %v", err)
	}
}

func TestTenantScopeSkipped(t *testing.T) {
	ctx := Session{RetailerId: "ret-1"}.Bind(context.Background())
	if TenantScopeSkipped(ctx) {
		t.Fatalf("bound session should be scoped")
	}
	if !TenantScopeSkipped(Set(ctx, ContextKeySkipTenantScope, true)) {
		t.Fatalf("skip flag ignored")
	}
	if TenantScopeSkipped(Set(ctx, ContextKeySkipTenantScope, "yes")) {
		t.Fatalf("non-bool skip value must be ignored")
	}
}
