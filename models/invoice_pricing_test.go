package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/gananathtech/inventory_backend/utils"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal.NewFromString(%q): %v", s, err)
	}
	return d
}

func TestComputeLineItem_DiscountThenGst(t *testing.T) {
	// 2 x 100.00, 10% discount, 12% gst:
	// subtotal 200.00, discount 20.00, gst on 180.00 = 21.60, total 201.60
	line := computeLineItem(NewInvoiceItem{
		ItemCode:           "BRK-001",
		Quantity:           2,
		UnitPrice:          mustDecimal(t, "100"),
		DiscountPercentage: mustDecimal(t, "10"),
		GstPercentage:      mustDecimal(t, "12"),
	}, "Clutch Plate")

	if got := line.DiscountAmount.StringFixed(2); got != "20.00" {
		t.Fatalf("discount amount expected 20.00, got %s", got)
	}
	if got := line.GstAmount.StringFixed(2); got != "21.60" {
		t.Fatalf("gst amount expected 21.60, got %s", got)
	}
	if got := line.LineTotal.StringFixed(2); got != "201.60" {
		t.Fatalf("line total expected 201.60, got %s", got)
	}
	if line.ItemName != "Clutch Plate" || line.ItemCode != "BRK-001" {
		t.Fatalf("item identity not carried onto the line: %+v", line)
	}
}

func TestComputeLineItem_FullDiscount(t *testing.T) {
	line := computeLineItem(NewInvoiceItem{
		ItemCode:           "OIL-110",
		Quantity:           3,
		UnitPrice:          mustDecimal(t, "450"),
		DiscountPercentage: mustDecimal(t, "100"),
		GstPercentage:      mustDecimal(t, "18"),
	}, "Engine Oil")

	if !line.DiscountAmount.Equal(mustDecimal(t, "1350")) {
		t.Fatalf("full discount expected 1350, got %s", line.DiscountAmount)
	}
	if !line.GstAmount.IsZero() {
		t.Fatalf("gst on a fully discounted line expected 0, got %s", line.GstAmount)
	}
	if !line.LineTotal.IsZero() {
		t.Fatalf("line total expected 0, got %s", line.LineTotal)
	}
}

func TestComputeLineItem_NoDiscountNoGst(t *testing.T) {
	line := computeLineItem(NewInvoiceItem{
		ItemCode:  "CHN-21",
		Quantity:  1,
		UnitPrice: mustDecimal(t, "99.99"),
	}, "Chain Set")

	if got := line.LineTotal.StringFixed(2); got != "99.99" {
		t.Fatalf("line total expected 99.99, got %s", got)
	}
}

func TestComputeLineItem_RoundsFractionalPaise(t *testing.T) {
	// 3 x 33.33 with 5% discount: subtotal 99.99, discount 4.9995 -> 5.00
	line := computeLineItem(NewInvoiceItem{
		ItemCode:           "SPK-5",
		Quantity:           3,
		UnitPrice:          mustDecimal(t, "33.33"),
		DiscountPercentage: mustDecimal(t, "5"),
	}, "Spark Plug")

	if got := line.DiscountAmount.StringFixed(2); got != "5.00" {
		t.Fatalf("discount amount expected 5.00, got %s", got)
	}
	if got := line.LineTotal.StringFixed(2); got != "94.99" {
		t.Fatalf("line total expected 94.99, got %s", got)
	}
}

func validSeller() NewSeller {
	return NewSeller{Name: "Ravi Traders", Phone: "NA", Address: "14 Market Road"}
}

func TestNewInvoiceValidate_Rejections(t *testing.T) {
	twelve := mustDecimal(t, "12")
	cases := []struct {
		name  string
		input NewInvoice
		field string
	}{
		{
			name:  "empty cart without allow_empty",
			input: NewInvoice{Seller: validSeller(), PaymentStatus: PaymentStatusPaid},
			field: "items",
		},
		{
			name: "bad payment status",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: "partial",
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 1}},
			},
			field: "payment_status",
		},
		{
			name: "zero quantity",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: PaymentStatusPaid,
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 0}},
			},
			field: "quantity",
		},
		{
			name: "negative unit price",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: PaymentStatusPaid,
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 1, UnitPrice: mustDecimal(t, "-1")}},
			},
			field: "unit_price",
		},
		{
			name: "discount above 100",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: PaymentStatusPaid,
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 1, DiscountPercentage: mustDecimal(t, "101")}},
			},
			field: "discount_percentage",
		},
		{
			name: "flat rate combined with per-line gst",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: PaymentStatusPaid,
				GstRate:       &twelve,
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 1, GstPercentage: mustDecimal(t, "5")}},
			},
			field: "gst_percentage",
		},
		{
			name: "flat gst rate above 100",
			input: NewInvoice{
				Seller:        validSeller(),
				PaymentStatus: PaymentStatusPaid,
				GstRate:       func() *decimal.Decimal { d := mustDecimal(t, "120"); return &d }(),
				Items:         []NewInvoiceItem{{ItemCode: "A", Quantity: 1}},
			},
			field: "gst_rate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.validate()
			if err == nil {
				t.Fatalf("expected validation error on %s", tc.field)
			}
			if !utils.IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			var ve *utils.ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestNewInvoiceValidate_AllowEmpty(t *testing.T) {
	input := NewInvoice{
		Seller:        validSeller(),
		PaymentStatus: PaymentStatusPaid,
		AllowEmpty:    utils.NewTrue(),
	}
	if err := input.validate(); err != nil {
		t.Fatalf("empty invoice with allow_empty should validate: %v", err)
	}

	// Explicit false behaves like the default: an empty cart is an error.
	input.AllowEmpty = utils.NewFalse()
	if err := input.validate(); !utils.IsValidationError(err) {
		t.Fatalf("empty invoice with allow_empty=false must be rejected, got %v", err)
	}
}

func TestFormatInvoiceNumber(t *testing.T) {
	cases := []struct {
		seq      int64
		expected string
	}{
		{1, "INV-0001"},
		{42, "INV-0042"},
		{9999, "INV-9999"},
		{10000, "INV-10000"},
	}
	for _, tc := range cases {
		if got := FormatInvoiceNumber(tc.seq); got != tc.expected {
			t.Fatalf("FormatInvoiceNumber(%d) expected %s, got %s", tc.seq, tc.expected, got)
		}
	}
}
