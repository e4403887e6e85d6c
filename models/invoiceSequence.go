package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/gananathtech/inventory_backend/utils"
)

// InvoiceSequence is the durable monotonic counter behind invoice numbering.
// The row is read locked and incremented inside the finalize transaction, so
// two concurrent finalizes can never observe the same value. Counting
// existing invoices instead would hand both of them the same number.
type InvoiceSequence struct {
	ID        int    `gorm:"primary_key" json:"id"`
	Name      string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	NextValue int64  `gorm:"not null;default:1" json:"next_value"`
}

const (
	invoiceSequenceName = "invoices"
	invoiceNumberPrefix = "INV-"
)

// nextInvoiceSequence reserves and returns the next sequence value. Must run
// inside the finalize transaction; the reservation is rolled back with it.
func nextInvoiceSequence(ctx context.Context, tx *gorm.DB) (int64, error) {
	var seq InvoiceSequence
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", invoiceSequenceName).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = InvoiceSequence{Name: invoiceSequenceName, NextValue: 1}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			// Two first-ever finalizes can both miss the row and race the
			// insert; the loser hits the unique index and should retry.
			if isDuplicateKeyError(err) {
				return 0, utils.NewConflictError("invoice sequence initialization raced with a concurrent finalize")
			}
			return 0, utils.NewPersistenceError("create invoice sequence", err)
		}
	} else if err != nil {
		return 0, utils.NewPersistenceError("lock invoice sequence", err)
	}

	value := seq.NextValue
	if err := tx.WithContext(ctx).Model(&seq).
		Update("NextValue", value+1).Error; err != nil {
		return 0, utils.NewPersistenceError("advance invoice sequence", err)
	}
	return value, nil
}

// FormatInvoiceNumber renders the human-readable display form, e.g. INV-0001.
// Width grows past four digits rather than wrapping.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("%s%04d", invoiceNumberPrefix, seq)
}

// isDuplicateKeyError detects a unique-index violation (MySQL error 1062).
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
