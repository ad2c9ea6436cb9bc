// conversation-resync recomputes last_message, last_activity and unread_count
// of every conversation from its stored messages.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/conversation-resync [--retailer-id <id>]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dukaflow/retailer_backend/appctx"
	"github.com/dukaflow/retailer_backend/config"
	"github.com/dukaflow/retailer_backend/inbox"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/repository"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	retailerID := flag.String("retailer-id", "", "Optional: only resync this retailer")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	store := repository.NewGormStore(db)
	// no redis: locks are skipped, which is fine for an offline repair
	syncer := inbox.NewSynchronizer(store, store, store)

	listCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	var retailers []models.Retailer
	if id := strings.TrimSpace(*retailerID); id != "" {
		r, err := store.GetRetailer(listCtx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "retailer %s: %v\n", id, err)
			os.Exit(1)
		}
		retailers = append(retailers, *r)
	} else {
		var err error
		if retailers, err = store.ListRetailers(listCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to list retailers: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	total := 0
	for _, r := range retailers {
		changed, err := syncer.ResyncAll(ctx, appctx.SystemSession(r.ID, tier.Parse(r.Tier)))
		if err != nil {
			failed++
			config.LogError(logger, "conversation-resync", "main", "ResyncAll", r.ID, err)
			continue
		}
		total += changed
		logger.WithFields(logrus.Fields{"retailer_id": r.ID, "changed": changed}).Info("conversations resynced")
	}

	fmt.Printf("retailers=%d conversations_changed=%d failed=%d\n", len(retailers), total, failed)
	if failed > 0 {
		os.Exit(2)
	}
}
