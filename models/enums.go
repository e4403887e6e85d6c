package models

// PaymentStatus is the settlement state of an invoice at finalize time.
// "credit" invoices defer settlement and raise the seller's outstanding
// balance through the ledger.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusCredit PaymentStatus = "credit"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusCredit:
		return true
	}
	return false
}

// TransactionType tags a seller ledger entry. Credits raise the outstanding
// balance, payments settle it.
type TransactionType string

const (
	TransactionTypeCredit  TransactionType = "credit"
	TransactionTypePayment TransactionType = "payment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypePayment:
		return true
	}
	return false
}

// TaxMode selects how an invoice's tax was computed: per-line gst folded
// into each line total, or a flat invoice-level rate applied to the sum.
type TaxMode string

const (
	TaxModePerLine TaxMode = "line"
	TaxModeFlat    TaxMode = "flat"
)
