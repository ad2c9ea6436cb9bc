// receipt-replay re-dispatches WhatsApp receipts for sales whose receipt
// failed or was never sent, completing the sale when the send succeeds.
//
// Usage:
//
//	DB_*=... TWILIO_*=... go run ./cmd/receipt-replay [--retailer-id <id>] [--limit 100]
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
	"github.com/dukaflow/retailer_backend/messaging"
	"github.com/dukaflow/retailer_backend/models"
	"github.com/dukaflow/retailer_backend/repository"
	"github.com/dukaflow/retailer_backend/tier"
	"github.com/dukaflow/retailer_backend/utils"
	"github.com/dukaflow/retailer_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	retailerID := flag.String("retailer-id", "", "Optional: only replay this retailer")
	limit := flag.Int("limit", 100, "Max sales per receipt status per retailer")
	flag.Parse()

	client, err := messaging.NewTwilioClient(messaging.TwilioConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "twilio: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	store := repository.NewGormStore(db)
	region := config.DefaultPhoneRegion()
	syncer := inbox.NewSynchronizer(store, store, store, inbox.WithRegion(region))
	gateway := messaging.NewGateway(client, syncer, region)
	processor := workflow.NewSaleProcessor(store, store, store, gateway, workflow.WithBestEffortReceipts(true))

	listCtx := utils.SetSkipTenantScopeInContext(ctx, true)
	var retailers []models.Retailer
	if id := strings.TrimSpace(*retailerID); id != "" {
		r, err := store.GetRetailer(listCtx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "retailer %s: %v\n", id, err)
			os.Exit(1)
		}
		retailers = append(retailers, *r)
	} else if retailers, err = store.ListRetailers(listCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to list retailers: %v\n", err)
		os.Exit(1)
	}

	sent := 0
	for _, r := range retailers {
		plan := tier.Parse(r.Tier)
		if !tier.PlanFor(plan).SendsReceipts() {
			continue
		}
		n, err := processor.ReplayFailedReceipts(ctx, appctx.SystemSession(r.ID, plan), *limit)
		if err != nil {
			config.LogError(logger, "receipt-replay", "main", "ReplayFailedReceipts", r.ID, err)
			continue
		}
		sent += n
		logger.WithFields(logrus.Fields{"retailer_id": r.ID, "sent": n}).Info("receipts replayed")
	}
	fmt.Printf("receipts_sent=%d\n", sent)
}
