package appctx

import "context"

// ContextKey types the values this service stores on a context. It lives in a
// leaf package so config and utils can both read it.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeySession       = ContextKey("Session")
	ContextKeyRetailerId    = ContextKey("RetailerId")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeySkipTenantScope turns the gorm tenant guard off. Set by ops
	// commands and by webhook lookups that resolve the retailer from data.
	ContextKeySkipTenantScope = ContextKey("SkipTenantScope")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// RetailerId returns the tenant bound on ctx, or "" when there is none.
func RetailerId(ctx context.Context) string {
	v, _ := GetString(ctx, ContextKeyRetailerId)
	return v
}

func TenantScopeSkipped(ctx context.Context) bool {
	v, _ := GetBool(ctx, ContextKeySkipTenantScope)
	return v
}
