package render

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	wordOnes = []string{
		"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	}
	wordTeens = []string{
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen",
		"Sixteen", "Seventeen", "Eighteen", "Nineteen",
	}
	wordTens = []string{
		"Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
	}
)

// numberToWords spells out n in English. Supports values up to the crore
// range, which covers any plausible invoice total.
func numberToWords(n int64) string {
	switch {
	case n < 0:
		return "Minus " + numberToWords(-n)
	case n < 10:
		return wordOnes[n]
	case n < 20:
		return wordTeens[n-10]
	case n < 100:
		s := wordTens[n/10-2]
		if n%10 != 0 {
			s += " " + wordOnes[n%10]
		}
		return s
	case n < 1000:
		s := wordOnes[n/100] + " Hundred"
		if n%100 != 0 {
			s += " and " + numberToWords(n%100)
		}
		return s
	case n < 100000:
		s := numberToWords(n/1000) + " Thousand"
		if n%1000 != 0 {
			s += ", " + numberToWords(n%1000)
		}
		return s
	case n < 10000000:
		s := numberToWords(n/100000) + " Lakh"
		if n%100000 != 0 {
			s += ", " + numberToWords(n%100000)
		}
		return s
	default:
		s := numberToWords(n/10000000) + " Crore"
		if n%10000000 != 0 {
			s += ", " + numberToWords(n%10000000)
		}
		return s
	}
}

// AmountInWords renders the "Rupees ... Only" footer line for an invoice
// total, e.g. "Rupees Two Hundred and One and Paise Sixty Only".
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Round(2)
	rupees := amount.IntPart()
	paise := amount.Sub(decimal.NewFromInt(rupees)).Mul(decimal.NewFromInt(100)).IntPart()

	var b strings.Builder
	b.WriteString("Rupees ")
	b.WriteString(numberToWords(rupees))
	if paise > 0 {
		b.WriteString(" and Paise ")
		b.WriteString(numberToWords(paise))
	}
	b.WriteString(" Only")
	return b.String()
}
