package utils

import (
	"context"

	"github.com/dukaflow/retailer_backend/appctx"
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

// SetRetailerIdInContext scopes gorm queries issued with ctx to one retailer
// without binding a full session.
func SetRetailerIdInContext(ctx context.Context, retailerId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyRetailerId, retailerId)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, appctx.ContextKeySkipTenantScope, skip)
}
