package render

import (
	"bytes"
	"html/template"
)

const invoiceHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Invoice {{.Invoice.Number}}</title>
  <style>
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 32px;
      font-family: "Helvetica Neue", Arial, sans-serif;
      color: #111827;
      background: #ffffff;
      {{if .Compact}}font-size: 12px;{{else}}font-size: 14px;{{end}}
    }
    .invoice {
      {{if .Compact}}max-width: 560px;{{else}}max-width: 820px;{{end}}
      margin: 0 auto;
    }
    .header {
      display: flex;
      justify-content: space-between;
      align-items: flex-start;
      border-bottom: 2px solid #374151;
      padding-bottom: 16px;
      margin-bottom: 24px;
    }
    .meta {
      text-align: right;
    }
    .title {
      text-align: center;
      font-size: 20px;
      letter-spacing: 0.08em;
      margin-bottom: 16px;
    }
    table {
      width: 100%;
      border-collapse: collapse;
    }
    th, td {
      padding: 8px;
      border: 1px solid #111827;
      text-align: center;
    }
    th {
      background: #6b7280;
      color: #f9fafb;
      text-transform: uppercase;
      font-size: 11px;
      letter-spacing: 0.04em;
    }
    td.item-name { text-align: left; width: 35%; }
    .totals {
      margin-top: 16px;
      text-align: right;
    }
    .totals div { padding: 2px 0; }
    .words {
      margin-top: 12px;
      font-style: italic;
    }
  </style>
</head>
<body>
  <div class="invoice">
    <div class="header">
      <div class="company">
        <strong>{{.Company.Name}}</strong><br />
        {{.Company.Address}}<br />
        {{.Company.City}}<br />
        GSTIN: {{.Company.Gstin}}
      </div>
      <div class="meta">
        Customer: {{.Seller.Name}}<br />
        {{.Seller.Address}}<br />
        Phone: {{.Seller.Phone}}<br />
        GSTIN: {{.Seller.Gstin}}<br />
        <br />
        Invoice Number: {{.Invoice.Number}}<br />
        Date: {{.Invoice.Date.Format "2006-01-02"}}<br />
        Payment: {{.Invoice.PaymentStatus}}
      </div>
    </div>

    <div class="title">TAX INVOICE</div>

    <table>
      <thead>
        <tr>
          <th>Item Name</th>
          <th>Item Code</th>
          <th>Qty</th>
          <th>Price</th>
          <th>Disc %</th>
          <th>GST %</th>
          <th>GST Amt</th>
          <th>Total</th>
        </tr>
      </thead>
      <tbody>
        {{range .Items}}
        <tr>
          <td class="item-name">{{.ItemName}}</td>
          <td>{{.ItemCode}}</td>
          <td>{{.Quantity}}</td>
          <td>&#8377;{{.UnitPrice}}</td>
          <td>{{.DiscountPercentage}}</td>
          <td>{{.GstPercentage}}</td>
          <td>&#8377;{{.GstAmount}}</td>
          <td>&#8377;{{.LineTotal}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>

    <div class="totals">
      <div>Subtotal: &#8377;{{.Invoice.TotalAmount}}</div>
      <div>Total GST: &#8377;{{.Invoice.TotalGst}}</div>
      <div><strong>Final Amount: &#8377;{{.Invoice.FinalAmount}}</strong></div>
    </div>

    <div class="words">{{.Invoice.AmountInWords}}</div>
  </div>
</body>
</html>
`

var invoiceTemplate = template.Must(template.New("invoice").Parse(invoiceHTMLTemplate))

// HTMLRenderer renders an invoice as a self-contained HTML document.
type HTMLRenderer struct{}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

func (r *HTMLRenderer) RenderHTML(input RenderInput) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, input); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
