package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/gananathtech/inventory_backend/utils"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Company       string          `gorm:"size:255;not null;uniqueIndex:idx_company_category_item" json:"company" binding:"required"`
	Category      string          `gorm:"size:255;not null;uniqueIndex:idx_company_category_item" json:"category" binding:"required"`
	ItemName      string          `gorm:"size:255;not null;uniqueIndex:idx_company_category_item" json:"item_name" binding:"required"`
	ItemCode      string          `gorm:"size:100;not null;uniqueIndex" json:"item_code" binding:"required"`
	BuyingPrice   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"buying_price"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"selling_price"`
	Quantity      int             `gorm:"not null;default:0" json:"quantity"`
	GstPercentage decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gst_percentage"`
	DatePurchased time.Time       `json:"date_purchased"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Company       string          `json:"company" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	ItemName      string          `json:"item_name" binding:"required"`
	ItemCode      string          `json:"item_code" binding:"required"`
	BuyingPrice   decimal.Decimal `json:"buying_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Quantity      int             `json:"quantity"`
	GstPercentage decimal.Decimal `json:"gst_percentage"`
	DatePurchased time.Time       `json:"date_purchased"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewProduct) validate(ctx context.Context, db *gorm.DB, id int) error {
	if input.Quantity < 0 {
		return utils.NewValidationError("quantity", "must not be negative")
	}
	if input.BuyingPrice.IsNegative() {
		return utils.NewValidationError("buying_price", "must not be negative")
	}
	if input.SellingPrice.IsNegative() {
		return utils.NewValidationError("selling_price", "must not be negative")
	}
	if input.GstPercentage.IsNegative() || input.GstPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("gst_percentage", "must be between 0 and 100")
	}
	// item code
	if err := utils.ValidateUnique[Product](ctx, db, "item_code", input.ItemCode, id); err != nil {
		return err
	}
	// (company, category, item_name)
	var count int64
	q := db.WithContext(ctx).Model(&Product{}).
		Where("company = ? AND category = ? AND item_name = ?", input.Company, input.Category, input.ItemName)
	if id > 0 {
		q = q.Where("NOT id = ?", id)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("item_name", "a product with this company, category and item name already exists")
	}
	return nil
}

// buyingPriceWithGst folds the supplied gst into the ex-tax buying price.
// The catalog stores the tax-inclusive figure.
func (input *NewProduct) buyingPriceWithGst() decimal.Decimal {
	gst := utils.CalculateGstAmount(input.BuyingPrice, input.GstPercentage)
	return input.BuyingPrice.Add(gst)
}

func CreateProduct(ctx context.Context, db *gorm.DB, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	product := Product{
		Company:       input.Company,
		Category:      input.Category,
		ItemName:      input.ItemName,
		ItemCode:      input.ItemCode,
		BuyingPrice:   input.buyingPriceWithGst(),
		SellingPrice:  input.SellingPrice,
		Quantity:      input.Quantity,
		GstPercentage: input.GstPercentage,
		DatePurchased: input.DatePurchased,
	}

	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, utils.NewPersistenceError("create product", err)
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, db *gorm.DB, id int, input *NewProduct) (*Product, error) {
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	product, err := GetProduct(ctx, db, id)
	if err != nil {
		return nil, err
	}

	product.Company = input.Company
	product.Category = input.Category
	product.ItemName = input.ItemName
	product.ItemCode = input.ItemCode
	product.BuyingPrice = input.buyingPriceWithGst()
	product.SellingPrice = input.SellingPrice
	product.Quantity = input.Quantity
	product.GstPercentage = input.GstPercentage
	product.DatePurchased = input.DatePurchased

	if err := db.WithContext(ctx).Save(product).Error; err != nil {
		return nil, utils.NewPersistenceError("update product", err)
	}
	return product, nil
}

func DeleteProduct(ctx context.Context, db *gorm.DB, id int) (*Product, error) {
	product, err := GetProduct(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(product).Error; err != nil {
		return nil, utils.NewPersistenceError("delete product", err)
	}
	return product, nil
}

func GetProduct(ctx context.Context, db *gorm.DB, id int) (*Product, error) {
	var product Product
	err := db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, utils.NewPersistenceError("get product", err)
	}
	return &product, nil
}

func GetProductByItemCode(ctx context.Context, db *gorm.DB, itemCode string) (*Product, error) {
	var product Product
	err := db.WithContext(ctx).Where("item_code = ?", itemCode).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, utils.NewPersistenceError("get product", err)
	}
	return &product, nil
}

func GetProductsAll(ctx context.Context, db *gorm.DB, company *string, category *string) ([]*Product, error) {
	var results []*Product

	dbCtx := db.WithContext(ctx)
	if company != nil && len(*company) > 0 {
		dbCtx = dbCtx.Where("company = ?", *company)
	}
	if category != nil && len(*category) > 0 {
		dbCtx = dbCtx.Where("category = ?", *category)
	}
	if err := dbCtx.Order("company, category, item_name").Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError("list products", err)
	}
	return results, nil
}
