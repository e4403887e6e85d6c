package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateDiscountAmount(t *testing.T) {
	cases := []struct {
		subTotal string
		discount string
		expected string
	}{
		{"200", "10", "20"},
		{"200", "0", "0"},
		{"200", "100", "200"},
		{"99.99", "5", "4.9995"},
	}
	for _, tc := range cases {
		got := CalculateDiscountAmount(decimal.RequireFromString(tc.subTotal), decimal.RequireFromString(tc.discount))
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("CalculateDiscountAmount(%s, %s) expected %s, got %s", tc.subTotal, tc.discount, tc.expected, got)
		}
	}
}

func TestCalculateGstAmount(t *testing.T) {
	got := CalculateGstAmount(decimal.RequireFromString("180"), decimal.RequireFromString("12"))
	if !got.Equal(decimal.RequireFromString("21.6")) {
		t.Fatalf("expected 21.6, got %s", got)
	}
	if !CalculateGstAmount(decimal.RequireFromString("180"), decimal.Zero).IsZero() {
		t.Fatal("zero gst rate must yield zero gst")
	}
}

func TestCalculateFlatTaxAmount(t *testing.T) {
	// 9% gst + 9% igst on 1000 = 180
	got := CalculateFlatTaxAmount(decimal.NewFromInt(1000), decimal.RequireFromString("9"), decimal.RequireFromString("9"))
	if !got.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("expected 180, got %s", got)
	}
	if !CalculateFlatTaxAmount(decimal.NewFromInt(1000), decimal.Zero, decimal.Zero).IsZero() {
		t.Fatal("zero combined rate must yield zero tax")
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"4.9995", "5.00"},
		{"21.604", "21.60"},
		{"21.605", "21.61"},
		{"0", "0.00"},
	}
	for _, tc := range cases {
		if got := Round2(decimal.RequireFromString(tc.in)).StringFixed(2); got != tc.expected {
			t.Fatalf("Round2(%s) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}
