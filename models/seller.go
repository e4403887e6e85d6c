package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/utils"
)

type Seller struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Name        string          `gorm:"size:255;not null;uniqueIndex:idx_seller_name_phone" json:"name" binding:"required"`
	Address     string          `gorm:"type:text" json:"address"`
	Phone       string          `gorm:"size:50;uniqueIndex:idx_seller_name_phone" json:"phone"`
	Gstin       string          `gorm:"size:50" json:"gstin"`
	TotalCredit decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_credit"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSeller struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Phone   string `json:"phone"`
	Gstin   string `json:"gstin"`
}

func (input *NewSeller) validate() error {
	if strings.TrimSpace(input.Name) == "" {
		return utils.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(input.Address) == "" {
		return utils.NewValidationError("address", "is required")
	}
	if p := strings.TrimSpace(input.Phone); p != "" && p != "NA" {
		if err := utils.ValidatePhoneNumber(p, utils.CountryCode); err != nil {
			return utils.NewValidationError("phone", "%v", err)
		}
	}
	return nil
}

func CreateSeller(ctx context.Context, db *gorm.DB, input *NewSeller) (*Seller, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&Seller{}).
		Where("name = ? AND phone = ?", input.Name, input.Phone).
		Count(&count).Error; err != nil {
		return nil, utils.NewPersistenceError("create seller", err)
	}
	if count > 0 {
		return nil, utils.NewValidationError("name", "a seller with this name and phone already exists")
	}

	seller := Seller{
		Name:    input.Name,
		Address: input.Address,
		Phone:   input.Phone,
		Gstin:   input.Gstin,
	}
	if err := db.WithContext(ctx).Create(&seller).Error; err != nil {
		return nil, utils.NewPersistenceError("create seller", err)
	}
	return &seller, nil
}

func UpdateSeller(ctx context.Context, db *gorm.DB, id int, input *NewSeller) (*Seller, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	seller, err := GetSeller(ctx, db, id)
	if err != nil {
		return nil, err
	}

	// Same identity rule as create: (name, phone) must not collide with
	// another seller.
	var count int64
	if err := db.WithContext(ctx).Model(&Seller{}).
		Where("name = ? AND phone = ? AND NOT id = ?", input.Name, input.Phone, id).
		Count(&count).Error; err != nil {
		return nil, utils.NewPersistenceError("update seller", err)
	}
	if count > 0 {
		return nil, utils.NewValidationError("name", "a seller with this name and phone already exists")
	}

	seller.Name = input.Name
	seller.Address = input.Address
	seller.Phone = input.Phone
	seller.Gstin = input.Gstin

	// TotalCredit is never written here; only ledger transactions move it.
	if err := db.WithContext(ctx).Model(seller).
		Updates(map[string]interface{}{
			"Name":    seller.Name,
			"Address": seller.Address,
			"Phone":   seller.Phone,
			"Gstin":   seller.Gstin,
		}).Error; err != nil {
		return nil, utils.NewPersistenceError("update seller", err)
	}
	return seller, nil
}

func GetSeller(ctx context.Context, db *gorm.DB, id int) (*Seller, error) {
	var seller Seller
	err := db.WithContext(ctx).First(&seller, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, utils.NewPersistenceError("get seller", err)
	}
	return &seller, nil
}

func GetSellersAll(ctx context.Context, db *gorm.DB, name *string) ([]*Seller, error) {
	var results []*Seller
	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%").Limit(config.SearchLimit)
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError("list sellers", err)
	}
	return results, nil
}

// upsertSellerForChange finds or creates a seller by (name, phone) inside
// the caller's transaction and returns the row locked for update. Matching
// sellers are reused, not duplicated; their stored contact fields win over
// whatever the cart form carried.
func upsertSellerForChange(ctx context.Context, tx *gorm.DB, input *NewSeller) (*Seller, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var seller Seller
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ? AND phone = ?", input.Name, input.Phone).
		First(&seller).Error
	if err == nil {
		return &seller, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewPersistenceError("lock seller", err)
	}

	seller = Seller{
		Name:    input.Name,
		Address: input.Address,
		Phone:   input.Phone,
		Gstin:   input.Gstin,
	}
	if err := tx.WithContext(ctx).Create(&seller).Error; err != nil {
		return nil, utils.NewPersistenceError("create seller", err)
	}
	return &seller, nil
}
