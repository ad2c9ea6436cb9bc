package appctx

import (
	"context"
	"errors"
	"strings"

	"github.com/dukaflow/retailer_backend/tier"
)

var ErrNoSession = errors.New("not authenticated")

// Session is the explicit per-request identity handed to every retailer-scoped
// operation. It is read-only once built by the session middleware.
type Session struct {
	ID         string
	RetailerId string
	UserId     int
	Tier       tier.Tier
}

// Valid reports whether the session carries a tenant.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.RetailerId) != ""
}

// Bind stores the session and its tenant id on ctx so the gorm tenant guard
// scopes every query issued with the returned context.
func (s Session) Bind(ctx context.Context) context.Context {
	ctx = Set(ctx, ContextKeySession, s)
	return Set(ctx, ContextKeyRetailerId, s.RetailerId)
}

// SessionFromContext returns the session bound by Bind.
func SessionFromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(ContextKeySession).(Session)
	if !ok || !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// SystemSession is used by webhook and ops paths after the tenant has been
// resolved from data rather than from a user token.
func SystemSession(retailerId string, t tier.Tier) Session {
	return Session{ID: "system", RetailerId: retailerId, Tier: t}
}
