// reconcile-seller-credit recomputes seller balances from the transaction
// ledger and reports sellers whose cached total_credit drifted. With --fix it
// rewrites the cached column from the ledger.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/reconcile-seller-credit [--fix]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/workflow"
)

func main() {
	fix := flag.Bool("fix", false, "Rewrite cached balances from the ledger (default: report only)")
	flag.Parse()

	ctx := context.Background()
	db := config.ConnectDatabaseWithRetry()
	logger := config.GetLogger()

	mismatches, err := workflow.RunSellerCreditReconciliation(ctx, db, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}
	if len(mismatches) == 0 {
		fmt.Println("all cached balances match the ledger")
		return
	}

	for _, m := range mismatches {
		fmt.Printf("seller %d (%s): cached=%s ledger=%s\n", m.SellerId, m.Name, m.Cached, m.Recomputed)
	}
	if !*fix {
		fmt.Printf("%d mismatched sellers; rerun with --fix to repair\n", len(mismatches))
		os.Exit(3)
	}

	for _, m := range mismatches {
		if err := db.WithContext(ctx).Model(&models.Seller{}).
			Where("id = ?", m.SellerId).
			Update("total_credit", m.Recomputed).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to fix seller %d: %v\n", m.SellerId, err)
			os.Exit(1)
		}
		fmt.Printf("fixed seller %d: %s -> %s\n", m.SellerId, m.Cached, m.Recomputed)
	}
}
