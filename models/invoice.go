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

// Invoice is an append-only record. The line items and seller fields are a
// snapshot frozen at finalize time; later catalog or seller edits must not
// change what was billed.
type Invoice struct {
	ID            int              `gorm:"primary_key" json:"id"`
	SequenceNo    int64            `gorm:"not null;uniqueIndex" json:"sequence_no"`
	InvoiceNumber string           `gorm:"size:255;not null;uniqueIndex" json:"invoice_number"`
	InvoiceDate   time.Time        `gorm:"not null" json:"invoice_date"`
	SellerId      int              `gorm:"index;not null" json:"seller_id"`
	SellerName    string           `gorm:"size:255;not null" json:"seller_name"`
	SellerAddress string           `gorm:"type:text" json:"seller_address"`
	SellerPhone   string           `gorm:"size:50" json:"seller_phone"`
	SellerGstin   string           `gorm:"size:50" json:"seller_gstin"`
	PaymentStatus PaymentStatus    `gorm:"type:enum('paid','credit');not null;default:'paid'" json:"payment_status"`
	TaxMode       TaxMode          `gorm:"type:enum('line','flat');not null;default:'line'" json:"tax_mode"`
	GstRate       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"gst_rate"`
	IgstRate      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"igst_rate"`
	LineItems     InvoiceLineItems `gorm:"type:json" json:"line_items"`
	TotalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	TotalGst      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_gst"`
	FinalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"final_amount"`
	PdfPath       string           `gorm:"size:512;default:null" json:"pdf_path"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInvoice struct {
	InvoiceDate   time.Time        `json:"invoice_date"`
	Seller        NewSeller        `json:"seller" binding:"required"`
	PaymentStatus PaymentStatus    `json:"payment_status" binding:"required"`
	Items         []NewInvoiceItem `json:"items"`
	// AllowEmpty must be set explicitly for a zero-item invoice; an empty
	// cart is otherwise treated as caller error.
	AllowEmpty *bool `json:"allow_empty"`
	// GstRate/IgstRate switch the invoice to the flat tax mode: the combined
	// rate is applied once to the invoice total instead of per line.
	GstRate  *decimal.Decimal `json:"gst_rate"`
	IgstRate *decimal.Decimal `json:"igst_rate"`
}

type NewInvoiceItem struct {
	ItemCode           string          `json:"item_code" binding:"required"`
	Quantity           int             `json:"quantity" binding:"required"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	GstPercentage      decimal.Decimal `json:"gst_percentage"`
}

func (input *NewInvoice) flatTaxMode() bool {
	return input.GstRate != nil || input.IgstRate != nil
}

func (input *NewInvoice) validate() error {
	if !input.PaymentStatus.Valid() {
		return utils.NewValidationError("payment_status", "must be 'paid' or 'credit'")
	}
	if len(input.Items) == 0 && !utils.DereferencePtr(input.AllowEmpty, false) {
		return utils.NewValidationError("items", "invoice has no line items; set allow_empty to create an empty invoice")
	}
	hundred := decimal.NewFromInt(100)
	if input.flatTaxMode() {
		gst := utils.DereferencePtr(input.GstRate, decimal.Zero)
		igst := utils.DereferencePtr(input.IgstRate, decimal.Zero)
		if gst.IsNegative() || gst.GreaterThan(hundred) {
			return utils.NewValidationError("gst_rate", "must be between 0 and 100")
		}
		if igst.IsNegative() || igst.GreaterThan(hundred) {
			return utils.NewValidationError("igst_rate", "must be between 0 and 100")
		}
	}
	for _, item := range input.Items {
		if item.ItemCode == "" {
			return utils.NewValidationError("item_code", "is required")
		}
		if item.Quantity <= 0 {
			return utils.NewValidationError("quantity", "must be a positive integer for item %s", item.ItemCode)
		}
		if item.UnitPrice.IsNegative() {
			return utils.NewValidationError("unit_price", "must not be negative for item %s", item.ItemCode)
		}
		if item.DiscountPercentage.IsNegative() || item.DiscountPercentage.GreaterThan(hundred) {
			return utils.NewValidationError("discount_percentage", "must be between 0 and 100 for item %s", item.ItemCode)
		}
		if item.GstPercentage.IsNegative() || item.GstPercentage.GreaterThan(hundred) {
			return utils.NewValidationError("gst_percentage", "must be between 0 and 100 for item %s", item.ItemCode)
		}
		if input.flatTaxMode() && item.GstPercentage.IsPositive() {
			return utils.NewValidationError("gst_percentage", "per-line gst cannot be combined with a flat invoice rate (item %s)", item.ItemCode)
		}
	}
	return input.Seller.validate()
}

// computeLineItem prices one cart row:
//
//	subtotal        = unit_price * quantity
//	discount_amount = subtotal * discount% / 100
//	gst_amount      = (subtotal - discount_amount) * gst% / 100
//	line_total      = subtotal - discount_amount + gst_amount
//
// All stored figures are fixed to 2 decimal places.
func computeLineItem(item NewInvoiceItem, itemName string) InvoiceLineItem {
	subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	discountAmount := utils.Round2(utils.CalculateDiscountAmount(subtotal, item.DiscountPercentage))
	amountAfterDiscount := subtotal.Sub(discountAmount)
	gstAmount := utils.Round2(utils.CalculateGstAmount(amountAfterDiscount, item.GstPercentage))

	return InvoiceLineItem{
		ItemName:           itemName,
		ItemCode:           item.ItemCode,
		Quantity:           item.Quantity,
		UnitPrice:          utils.Round2(item.UnitPrice),
		DiscountPercentage: item.DiscountPercentage,
		DiscountAmount:     discountAmount,
		GstPercentage:      item.GstPercentage,
		GstAmount:          gstAmount,
		LineTotal:          utils.Round2(amountAfterDiscount.Add(gstAmount)),
	}
}

// CreateInvoice is the finalize operation: it prices the cart, reserves the
// next invoice number, persists the snapshot, decrements stock and (for
// credit sales) appends to the seller ledger — all inside one transaction.
// There are exactly two outcomes: everything committed, or nothing.
func CreateInvoice(ctx context.Context, db *gorm.DB, input *NewInvoice) (*Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.InvoiceDate.IsZero() {
		input.InvoiceDate = time.Now()
	}

	// Friendly availability check before taking any locks. Uses unlocked
	// reads, so a shortage found here is a caller error, not a race.
	for _, item := range input.Items {
		product, err := GetProductByItemCode(ctx, db, item.ItemCode)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.NewValidationError("item_code", "no product with item code %s", item.ItemCode)
		}
		if err != nil {
			return nil, err
		}
		if product.Quantity < item.Quantity {
			return nil, utils.NewValidationError("quantity",
				"insufficient stock for item %s: requested %d, available %d", item.ItemCode, item.Quantity, product.Quantity)
		}
	}

	lock, err := utils.AcquireFinalizeLock(ctx, "invoice", "CreateInvoice")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseFinalizeLock(ctx, lock)

	tx := db.Begin()
	if tx.Error != nil {
		return nil, utils.NewPersistenceError("begin finalize transaction", tx.Error)
	}
	// always rollback on early-return or panic to avoid leaking DB locks
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	seller, err := upsertSellerForChange(ctx, tx, &input.Seller)
	if err != nil {
		return nil, err
	}

	// Re-verify stock under lock. A shortage at this point means another
	// finalize won the race between our pre-check and now.
	lineItems := make(InvoiceLineItems, 0, len(input.Items))
	for _, item := range input.Items {
		var product Product
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("item_code = ?", item.ItemCode).
			First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewConflictError("product %s was removed by a concurrent change", item.ItemCode)
		}
		if err != nil {
			return nil, utils.NewPersistenceError("lock product", err)
		}
		if product.Quantity < item.Quantity {
			return nil, utils.NewConflictError(
				"insufficient stock for item %s: requested %d, available %d", item.ItemCode, item.Quantity, product.Quantity)
		}

		if err := tx.WithContext(ctx).Model(&product).
			Update("Quantity", product.Quantity-item.Quantity).Error; err != nil {
			return nil, utils.NewPersistenceError("decrement stock", err)
		}

		lineItems = append(lineItems, computeLineItem(item, product.ItemName))
	}

	var totalAmount, totalGst decimal.Decimal
	for _, line := range lineItems {
		totalAmount = totalAmount.Add(line.LineTotal)
		totalGst = totalGst.Add(line.GstAmount)
	}

	finalAmount := totalAmount
	taxMode := TaxModePerLine
	gstRate := decimal.Zero
	igstRate := decimal.Zero
	if input.flatTaxMode() {
		taxMode = TaxModeFlat
		gstRate = utils.DereferencePtr(input.GstRate, decimal.Zero)
		igstRate = utils.DereferencePtr(input.IgstRate, decimal.Zero)
		totalGst = utils.Round2(utils.CalculateFlatTaxAmount(totalAmount, gstRate, igstRate))
		finalAmount = totalAmount.Add(totalGst)
	}

	seqNo, err := nextInvoiceSequence(ctx, tx)
	if err != nil {
		return nil, err
	}

	invoice := Invoice{
		SequenceNo:    seqNo,
		InvoiceNumber: FormatInvoiceNumber(seqNo),
		InvoiceDate:   input.InvoiceDate,
		SellerId:      seller.ID,
		SellerName:    seller.Name,
		SellerAddress: seller.Address,
		SellerPhone:   seller.Phone,
		SellerGstin:   seller.Gstin,
		PaymentStatus: input.PaymentStatus,
		TaxMode:       taxMode,
		GstRate:       gstRate,
		IgstRate:      igstRate,
		LineItems:     lineItems,
		TotalAmount:   utils.Round2(totalAmount),
		TotalGst:      utils.Round2(totalGst),
		FinalAmount:   utils.Round2(finalAmount),
	}

	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, utils.NewPersistenceError("create invoice", err)
	}

	if input.PaymentStatus == PaymentStatusCredit {
		if err := recordSellerCredit(ctx, tx, seller, invoice.FinalAmount, invoice.ID, invoice.InvoiceDate); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.NewPersistenceError("commit finalize", err)
	}
	return &invoice, nil
}

// UpdateInvoicePdfPath records where the rendered artifact was written.
// The only mutable column on an otherwise append-only row.
func UpdateInvoicePdfPath(ctx context.Context, db *gorm.DB, id int, pdfPath string) error {
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("id = ?", id).
		Update("PdfPath", pdfPath)
	if result.Error != nil {
		return utils.NewPersistenceError("update invoice pdf path", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

func GetInvoice(ctx context.Context, db *gorm.DB, id int) (*Invoice, error) {
	var invoice Invoice
	err := db.WithContext(ctx).First(&invoice, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, utils.NewPersistenceError("get invoice", err)
	}
	return &invoice, nil
}

func GetInvoicesAll(ctx context.Context, db *gorm.DB, sellerId *int, fromDate *time.Time, toDate *time.Time) ([]*Invoice, error) {
	var results []*Invoice
	dbCtx := db.WithContext(ctx)
	if sellerId != nil && *sellerId > 0 {
		dbCtx = dbCtx.Where("seller_id = ?", *sellerId)
	}
	if fromDate != nil {
		dbCtx = dbCtx.Where("invoice_date >= ?", *fromDate)
	}
	if toDate != nil {
		dbCtx = dbCtx.Where("invoice_date <= ?", *toDate)
	}
	if err := dbCtx.Order("invoice_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError("list invoices", err)
	}
	return results, nil
}
