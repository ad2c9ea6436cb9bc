package config

import (
	"strings"

	"github.com/dukaflow/retailer_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tenantColumn = "retailer_id"

// TenantGuardPlugin adds "retailer_id = ?" to queries, updates and deletes on
// retailer-owned tables, using the retailer bound by appctx.Session.Bind. Raw SQL
// and contexts marked with appctx.ContextKeySkipTenantScope pass through.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil || appctx.TenantScopeSkipped(ctx) {
		return
	}
	retailerId := appctx.RetailerId(ctx)
	if retailerId == "" {
		return
	}
	if db.Statement.Schema == nil || db.Statement.Schema.LookUpField(tenantColumn) == nil {
		return
	}
	// repositories already filter by retailer_id explicitly
	if whereHasTenantColumn(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: tenantColumn},
				Value:  retailerId,
			},
		},
	})
}

func whereHasTenantColumn(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasTenantColumn(e) {
			return true
		}
	}
	return false
}

func exprHasTenantColumn(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return isTenantColumn(v.Column)
	case clause.IN:
		return isTenantColumn(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasTenantColumn(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	default:
		return false
	}
}

func isTenantColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	default:
		return false
	}
}
