package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/gananathtech/inventory_backend/utils"
)

// SellerTransaction is the append-only ledger behind Seller.TotalCredit.
// Rows are immutable once created; the cached balance must always equal
// credits minus payments.
type SellerTransaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	SellerId        int             `gorm:"index;not null" json:"seller_id" binding:"required"`
	InvoiceId       *int            `gorm:"index;default:null" json:"invoice_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount" binding:"required"`
	TransactionType TransactionType `gorm:"type:enum('credit','payment');not null" json:"transaction_type" binding:"required"`
	Date            time.Time       `gorm:"not null" json:"date"`
	Notes           string          `gorm:"type:text;default:null" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewSellerPayment struct {
	// SellerId is taken from the request path, not the body.
	SellerId int             `json:"seller_id"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Date     time.Time       `json:"date"`
	Notes    string          `json:"notes"`
}

// recordSellerCredit appends a credit entry and raises the cached balance.
// Called only by invoice finalization, inside its transaction.
func recordSellerCredit(ctx context.Context, tx *gorm.DB, seller *Seller, amount decimal.Decimal, invoiceId int, date time.Time) error {
	transaction := SellerTransaction{
		SellerId:        seller.ID,
		InvoiceId:       &invoiceId,
		Amount:          amount,
		TransactionType: TransactionTypeCredit,
		Date:            date,
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return utils.NewPersistenceError("record seller credit", err)
	}

	seller.TotalCredit = seller.TotalCredit.Add(amount)
	if err := tx.WithContext(ctx).Model(seller).
		Update("TotalCredit", seller.TotalCredit).Error; err != nil {
		return utils.NewPersistenceError("update seller credit", err)
	}
	return nil
}

// RecordSellerPayment appends a payment entry and lowers the cached balance.
// The payment must not exceed the seller's pending balance recomputed from
// the ledger under lock, so two racing payments cannot both drain it.
func RecordSellerPayment(ctx context.Context, db *gorm.DB, input *NewSellerPayment) (*SellerTransaction, error) {
	if !input.Amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}
	if input.Date.IsZero() {
		input.Date = time.Now()
	}

	tx := db.Begin()
	if tx.Error != nil {
		return nil, utils.NewPersistenceError("begin payment transaction", tx.Error)
	}
	// always rollback on early-return or panic to avoid leaking DB locks
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	var seller Seller
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&seller, input.SellerId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, utils.NewPersistenceError("lock seller", err)
	}

	pending, err := pendingBalance(ctx, tx, seller.ID)
	if err != nil {
		return nil, err
	}
	if input.Amount.GreaterThan(pending) {
		return nil, utils.NewValidationError("amount",
			"payment %s exceeds pending balance %s", input.Amount.StringFixed(2), pending.StringFixed(2))
	}

	transaction := SellerTransaction{
		SellerId:        seller.ID,
		Amount:          input.Amount,
		TransactionType: TransactionTypePayment,
		Date:            input.Date,
		Notes:           input.Notes,
	}
	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		return nil, utils.NewPersistenceError("record seller payment", err)
	}

	if err := tx.WithContext(ctx).Model(&seller).
		Update("TotalCredit", seller.TotalCredit.Sub(input.Amount)).Error; err != nil {
		return nil, utils.NewPersistenceError("update seller credit", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewPersistenceError("commit payment", err)
	}
	return &transaction, nil
}

// pendingBalance recomputes the outstanding balance from the ledger:
// sum of credit transactions minus sum of payment transactions.
func pendingBalance(ctx context.Context, db *gorm.DB, sellerId int) (decimal.Decimal, error) {
	type sums struct {
		Credits  decimal.Decimal
		Payments decimal.Decimal
	}
	var s sums
	err := db.WithContext(ctx).Model(&SellerTransaction{}).
		Select(
			"COALESCE(SUM(CASE WHEN transaction_type = 'credit' THEN amount ELSE 0 END), 0) AS credits, "+
				"COALESCE(SUM(CASE WHEN transaction_type = 'payment' THEN amount ELSE 0 END), 0) AS payments").
		Where("seller_id = ?", sellerId).
		Scan(&s).Error
	if err != nil {
		return decimal.Zero, utils.NewPersistenceError("sum seller transactions", err)
	}
	return s.Credits.Sub(s.Payments), nil
}

func GetSellerTransactions(ctx context.Context, db *gorm.DB, sellerId int) ([]*SellerTransaction, error) {
	if err := utils.ValidateResourceId[Seller](ctx, db, sellerId); err != nil {
		return nil, err
	}

	var results []*SellerTransaction
	if err := db.WithContext(ctx).
		Where("seller_id = ?", sellerId).
		Order("date DESC, id DESC").
		Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError("list seller transactions", err)
	}
	return results, nil
}
