package models

import (
	"log"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) {
	err := db.AutoMigrate(
		&Product{},
		&Seller{}, &SellerTransaction{},
		&Invoice{}, &InvoiceSequence{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
