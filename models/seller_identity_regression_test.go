package models_test

import (
	"errors"
	"testing"

	"bitbucket.org/gananathtech/inventory_backend/models"
	"bitbucket.org/gananathtech/inventory_backend/utils"
)

// Regression: renaming a seller onto another seller's (name, phone) identity
// must be rejected at validation, not surface as a duplicate-key store error.
func TestUpdateSeller_RejectsIdentityCollision(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := testContext()

	first, err := models.CreateSeller(ctx, db, &models.NewSeller{
		Name: "Ravi Traders", Phone: "NA", Address: "14 Market Road",
	})
	if err != nil {
		t.Fatalf("CreateSeller: %v", err)
	}
	second, err := models.CreateSeller(ctx, db, &models.NewSeller{
		Name: "Chain Depot", Phone: "NA", Address: "7 Ring Road",
	})
	if err != nil {
		t.Fatalf("CreateSeller: %v", err)
	}

	_, err = models.UpdateSeller(ctx, db, second.ID, &models.NewSeller{
		Name: first.Name, Phone: first.Phone, Address: "7 Ring Road",
	})
	if err == nil {
		t.Fatal("expected identity collision to be rejected")
	}
	if !utils.IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}

	// Updating contact fields without changing identity stays allowed.
	updated, err := models.UpdateSeller(ctx, db, second.ID, &models.NewSeller{
		Name: second.Name, Phone: second.Phone, Address: "9 Ring Road", Gstin: "29ABCDE1234F1Z5",
	})
	if err != nil {
		t.Fatalf("UpdateSeller: %v", err)
	}
	if updated.Address != "9 Ring Road" {
		t.Fatalf("address not updated: %+v", updated)
	}

	// Transaction history for an unknown seller is not-found, not an empty
	// list.
	if _, err := models.GetSellerTransactions(ctx, db, 99999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record not found for unknown seller, got %v", err)
	}
}
