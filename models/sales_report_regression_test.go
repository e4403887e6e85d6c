package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/gananathtech/inventory_backend/models"
)

// Regression: one corrupted line item snapshot must not fail the whole
// report. The bad row is counted and skipped; everything else aggregates.
func TestBuildSalesReport_SkipsUnparseableSnapshots(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := testContext()

	seedProduct(t, ctx, db, "BRK-001", 20)
	seedProduct(t, ctx, db, "OIL-110", 20)

	seller := models.NewSeller{Name: "Ravi Traders", Phone: "NA", Address: "14 Market Road"}
	for i := 0; i < 3; i++ {
		if _, err := models.CreateInvoice(ctx, db, &models.NewInvoice{
			InvoiceDate:   time.Now(),
			Seller:        seller,
			PaymentStatus: models.PaymentStatusPaid,
			Items: []models.NewInvoiceItem{
				{ItemCode: "BRK-001", Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
				{ItemCode: "OIL-110", Quantity: 1, UnitPrice: decimal.NewFromInt(450)},
			},
		}); err != nil {
			t.Fatalf("CreateInvoice: %v", err)
		}
	}

	// Corrupt one snapshot in place, bypassing the model layer.
	if err := db.Exec(
		"UPDATE invoices SET line_items = ? WHERE invoice_number = ?",
		"{'item_name': 'Brake Pad'}", "INV-0002",
	).Error; err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}

	report, err := models.BuildSalesReport(ctx, db, 10)
	if err != nil {
		t.Fatalf("BuildSalesReport: %v", err)
	}

	if report.InvoiceCount != 3 {
		t.Fatalf("expected 3 invoices scanned, got %d", report.InvoiceCount)
	}
	if report.SkippedRecords != 1 {
		t.Fatalf("expected 1 skipped record, got %d", report.SkippedRecords)
	}

	// Only the two parseable invoices contribute: 4 brake pads, 2 oils.
	if len(report.TopItems) != 2 {
		t.Fatalf("expected 2 items, got %+v", report.TopItems)
	}
	if report.TopItems[0].ItemCode != "BRK-001" || report.TopItems[0].QuantitySold != 4 {
		t.Fatalf("top item expected BRK-001 x4, got %+v", report.TopItems[0])
	}

	if len(report.DailyRevenue) != 1 {
		t.Fatalf("expected a single daily bucket, got %+v", report.DailyRevenue)
	}

	content, err := models.ExportSalesReportXlsx(report)
	if err != nil {
		t.Fatalf("ExportSalesReportXlsx: %v", err)
	}
	if len(content) == 0 {
		t.Fatal("expected non-empty workbook")
	}
}
