package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/utils"
)

// Reporting reads historical invoices only; it never takes locks and never
// writes. Malformed line-item snapshots are skipped and counted, not fatal.

type ItemSales struct {
	ItemName     string          `json:"item_name"`
	ItemCode     string          `json:"item_code"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type RevenuePoint struct {
	Period  string          `json:"period"`
	Revenue decimal.Decimal `json:"revenue"`
}

type SalesReport struct {
	TopItems       []ItemSales    `json:"top_items"`
	DailyRevenue   []RevenuePoint `json:"daily_revenue"`
	MonthlyRevenue []RevenuePoint `json:"monthly_revenue"`
	InvoiceCount   int            `json:"invoice_count"`
	SkippedRecords int            `json:"skipped_records"`
}

// invoiceReportRow reads the snapshot column as raw text so one bad row
// cannot fail the whole scan.
type invoiceReportRow struct {
	ID            int
	InvoiceNumber string
	InvoiceDate   time.Time
	FinalAmount   decimal.Decimal
	LineItems     string
}

func BuildSalesReport(ctx context.Context, db *gorm.DB, topN int) (*SalesReport, error) {
	logger := config.GetLogger()
	if topN <= 0 {
		topN = 10
	}

	var rows []invoiceReportRow
	if err := db.WithContext(ctx).Model(&Invoice{}).
		Select("id, invoice_number, invoice_date, final_amount, line_items").
		Order("invoice_date DESC").
		Scan(&rows).Error; err != nil {
		return nil, utils.NewPersistenceError("scan invoices for report", err)
	}

	report := SalesReport{InvoiceCount: len(rows)}

	salesByCode := make(map[string]*ItemSales)
	dailyRevenue := make(map[string]decimal.Decimal)
	monthlyRevenue := make(map[string]decimal.Decimal)
	last30Days := time.Now().AddDate(0, 0, -30)

	for _, row := range rows {
		items, err := parseLineItemSnapshot(row.LineItems)
		if err != nil {
			// skip-and-warn: the rest of the report still counts.
			report.SkippedRecords++
			config.LogError(logger, "report", "BuildSalesReport",
				"skipping unparseable line item snapshot", row.InvoiceNumber, err)
			continue
		}

		for _, item := range items {
			entry, ok := salesByCode[item.ItemCode]
			if !ok {
				entry = &ItemSales{ItemName: item.ItemName, ItemCode: item.ItemCode}
				salesByCode[item.ItemCode] = entry
			}
			entry.QuantitySold += item.Quantity
			entry.Revenue = entry.Revenue.Add(item.LineTotal)
		}

		if row.InvoiceDate.After(last30Days) {
			day := row.InvoiceDate.Format("2006-01-02")
			dailyRevenue[day] = dailyRevenue[day].Add(row.FinalAmount)
		}
		month := row.InvoiceDate.Format("2006-01")
		monthlyRevenue[month] = monthlyRevenue[month].Add(row.FinalAmount)
	}

	for _, entry := range salesByCode {
		report.TopItems = append(report.TopItems, *entry)
	}
	sort.Slice(report.TopItems, func(i, j int) bool {
		if report.TopItems[i].QuantitySold != report.TopItems[j].QuantitySold {
			return report.TopItems[i].QuantitySold > report.TopItems[j].QuantitySold
		}
		return report.TopItems[i].ItemCode < report.TopItems[j].ItemCode
	})
	if len(report.TopItems) > topN {
		report.TopItems = report.TopItems[:topN]
	}

	report.DailyRevenue = sortedRevenuePoints(dailyRevenue)
	report.MonthlyRevenue = sortedRevenuePoints(monthlyRevenue)

	return &report, nil
}

func sortedRevenuePoints(byPeriod map[string]decimal.Decimal) []RevenuePoint {
	points := make([]RevenuePoint, 0, len(byPeriod))
	for period, revenue := range byPeriod {
		points = append(points, RevenuePoint{Period: period, Revenue: revenue})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points
}

type SellerCreditSummary struct {
	SellerId    int             `json:"seller_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Invoices    int64           `json:"invoices"`
}

func BuildSellerCreditSummary(ctx context.Context, db *gorm.DB) ([]SellerCreditSummary, error) {
	var results []SellerCreditSummary
	err := db.WithContext(ctx).Model(&Seller{}).
		Select("sellers.id AS seller_id, sellers.name, sellers.phone, sellers.total_credit, COUNT(invoices.id) AS invoices").
		Joins("LEFT JOIN invoices ON invoices.seller_id = sellers.id").
		Group("sellers.id").
		Order("sellers.total_credit DESC").
		Scan(&results).Error
	if err != nil {
		return nil, utils.NewPersistenceError("seller credit summary", err)
	}
	return results, nil
}

// ExportSalesReportXlsx renders the report as a spreadsheet for download.
func ExportSalesReportXlsx(report *SalesReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sales"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Item Name", "Item Code", "Quantity Sold", "Revenue"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, item := range report.TopItems {
		rowNum := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", rowNum), item.ItemName)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", rowNum), item.ItemCode)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", rowNum), item.QuantitySold)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", rowNum), item.Revenue.StringFixed(2))
	}

	revenueSheet := "Revenue"
	if _, err := f.NewSheet(revenueSheet); err != nil {
		return nil, err
	}
	f.SetCellValue(revenueSheet, "A1", "Month")
	f.SetCellValue(revenueSheet, "B1", "Revenue")
	for i, point := range report.MonthlyRevenue {
		rowNum := i + 2
		f.SetCellValue(revenueSheet, fmt.Sprintf("A%d", rowNum), point.Period)
		f.SetCellValue(revenueSheet, fmt.Sprintf("B%d", rowNum), point.Revenue.StringFixed(2))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
