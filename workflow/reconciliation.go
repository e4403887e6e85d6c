package workflow

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/utils"
)

// SellerCreditMismatch reports a seller whose cached total_credit disagrees
// with the balance recomputed from the transaction log.
type SellerCreditMismatch struct {
	SellerId   int             `json:"seller_id"`
	Name       string          `json:"name"`
	Cached     decimal.Decimal `json:"cached"`
	Recomputed decimal.Decimal `json:"recomputed"`
}

// RunSellerCreditReconciliation recomputes every seller's balance from the
// append-only ledger and compares it to the cached field. Intended to run on
// a schedule (nightly) or via an admin trigger. An empty result means the
// ledger invariant holds.
func RunSellerCreditReconciliation(ctx context.Context, db *gorm.DB, logger *logrus.Logger) ([]SellerCreditMismatch, error) {
	type balanceRow struct {
		SellerId   int
		Name       string
		Cached     decimal.Decimal
		Recomputed decimal.Decimal
	}

	var rows []balanceRow
	err := db.WithContext(ctx).Model(&models.Seller{}).
		Select("sellers.id AS seller_id, sellers.name, sellers.total_credit AS cached, " +
			"COALESCE(SUM(CASE WHEN seller_transactions.transaction_type = 'credit' THEN seller_transactions.amount " +
			"WHEN seller_transactions.transaction_type = 'payment' THEN -seller_transactions.amount ELSE 0 END), 0) AS recomputed").
		Joins("LEFT JOIN seller_transactions ON seller_transactions.seller_id = sellers.id").
		Group("sellers.id").
		Scan(&rows).Error
	if err != nil {
		return nil, utils.NewPersistenceError("reconcile seller credits", err)
	}

	var mismatches []SellerCreditMismatch
	for _, row := range rows {
		if !row.Cached.Equal(row.Recomputed) {
			mismatches = append(mismatches, SellerCreditMismatch(row))
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"sellers":    len(rows),
			"mismatches": len(mismatches),
		}).Info("seller credit reconciliation completed")
	}
	return mismatches, nil
}
