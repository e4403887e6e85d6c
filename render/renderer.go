package render

import (
	"time"

	"bitbucket.org/gananathtech/inventory_backend/config"
	"bitbucket.org/gananathtech/inventory_backend/models"
)

// RenderInput is the deterministic input used for invoice rendering. It is a
// pure projection of a finalized invoice plus the company profile; rendering
// never touches engine state.
type RenderInput struct {
	Company  CompanyView
	Invoice  InvoiceView
	Seller   SellerView
	Items    []LineItemView
	Compact  bool
	Rendered time.Time
}

type CompanyView struct {
	Name    string
	Address string
	City    string
	Gstin   string
}

type InvoiceView struct {
	Number        string
	Date          time.Time
	PaymentStatus string
	TotalAmount   string
	TotalGst      string
	FinalAmount   string
	AmountInWords string
}

type SellerView struct {
	Name    string
	Address string
	Phone   string
	Gstin   string
}

type LineItemView struct {
	ItemName           string
	ItemCode           string
	Quantity           int
	UnitPrice          string
	DiscountPercentage string
	DiscountAmount     string
	GstPercentage      string
	GstAmount          string
	LineTotal          string
}

type Renderer interface {
	RenderHTML(input RenderInput) ([]byte, error)
}

// compactItemThreshold mirrors the original template's page-size switch:
// short invoices render on the smaller layout.
const compactItemThreshold = 5

// BuildRenderInput projects a finalized invoice into the renderer's view.
func BuildRenderInput(invoice *models.Invoice, company config.CompanyProfile) RenderInput {
	items := make([]LineItemView, 0, len(invoice.LineItems))
	for _, item := range invoice.LineItems {
		items = append(items, LineItemView{
			ItemName:           item.ItemName,
			ItemCode:           item.ItemCode,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice.StringFixed(2),
			DiscountPercentage: item.DiscountPercentage.StringFixed(2),
			DiscountAmount:     item.DiscountAmount.StringFixed(2),
			GstPercentage:      item.GstPercentage.StringFixed(2),
			GstAmount:          item.GstAmount.StringFixed(2),
			LineTotal:          item.LineTotal.StringFixed(2),
		})
	}

	return RenderInput{
		Company: CompanyView{
			Name:    company.Name,
			Address: company.Address,
			City:    company.City,
			Gstin:   company.Gstin,
		},
		Invoice: InvoiceView{
			Number:        invoice.InvoiceNumber,
			Date:          invoice.InvoiceDate,
			PaymentStatus: string(invoice.PaymentStatus),
			TotalAmount:   invoice.TotalAmount.StringFixed(2),
			TotalGst:      invoice.TotalGst.StringFixed(2),
			FinalAmount:   invoice.FinalAmount.StringFixed(2),
			AmountInWords: AmountInWords(invoice.FinalAmount),
		},
		Seller: SellerView{
			Name:    invoice.SellerName,
			Address: invoice.SellerAddress,
			Phone:   invoice.SellerPhone,
			Gstin:   invoice.SellerGstin,
		},
		Items:    items,
		Compact:  len(invoice.LineItems) <= compactItemThreshold,
		Rendered: time.Now(),
	}
}
