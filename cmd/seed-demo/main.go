// seed-demo creates one retailer per tier with a few customers and prints a
// session token for each, for local testing of the dashboard and webhooks.
//
// Usage:
//
//	DB_*=... API_SECRET=... go run ./cmd/seed-demo
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/repository"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/google/uuid"
)

var demoRetailers = []models.Retailer{
	{ID: "demo-basic", Name: "Mama Njeri Boutique", WhatsappNumber: "+254711000001", Tier: string(tier.Basic)},
	{ID: "demo-standard", Name: "Kilimani Fashion House", WhatsappNumber: "+254711000002", Tier: string(tier.Standard)},
	{ID: "demo-pro", Name: "Westlands Style Co", WhatsappNumber: "+254711000003", Tier: string(tier.Pro)},
}

var demoCustomers = []struct{ Name, Phone string }{
	{"Jane Wanjiku", "0700000000"},
	{"Otieno Ouma", "0722123456"},
	{"Amina Hassan", "+254733987654"},
}

func main() {
	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	store := repository.NewGormStore(db)

	for _, r := range demoRetailers {
		r := r
		if err := store.CreateRetailer(ctx, &r); err != nil && !errors.Is(err, utils.ErrDuplicateKey) {
			fmt.Fprintf(os.Stderr, "retailer %s: %v\n", r.ID, err)
			os.Exit(1)
		}
		for _, c := range demoCustomers {
			cust := models.Customer{RetailerId: r.ID, Name: c.Name, Phone: c.Phone}
			if err := store.CreateCustomer(ctx, &cust); err != nil && !errors.Is(err, utils.ErrDuplicateKey) {
				fmt.Fprintf(os.Stderr, "customer %s/%s: %v\n", r.ID, c.Phone, err)
				os.Exit(1)
			}
		}

		token, err := utils.JwtGenerate(uuid.NewString(), 1, r.ID, r.Tier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "token for %s: %v\n", r.ID, err)
			os.Exit(1)
		}
		fmt.Printf("%-14s %-8s %s\n  token: %s\n", r.ID, r.Tier, r.WhatsappNumber, token)
	}
}
