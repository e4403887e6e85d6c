package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// lineItemSnapshotVersion is bumped whenever the snapshot shape changes so
// historical invoices stay parseable as the schema evolves.
const lineItemSnapshotVersion = 1

// InvoiceLineItem is one priced cart row frozen into the invoice at finalize
// time. Later catalog price changes must not alter it.
type InvoiceLineItem struct {
	ItemName           string          `json:"item_name"`
	ItemCode           string          `json:"item_code"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	GstPercentage      decimal.Decimal `json:"gst_percentage"`
	GstAmount          decimal.Decimal `json:"gst_amount"`
	LineTotal          decimal.Decimal `json:"line_total"`
}

// InvoiceLineItems persists as a versioned JSON document, not a str(dict)
// blob. The envelope is self-describing so reporting can skip rows written
// by future schema versions instead of crashing.
type InvoiceLineItems []InvoiceLineItem

type lineItemSnapshot struct {
	Version int               `json:"version"`
	Items   []InvoiceLineItem `json:"items"`
}

func (li InvoiceLineItems) Value() (driver.Value, error) {
	snapshot := lineItemSnapshot{
		Version: lineItemSnapshotVersion,
		Items:   []InvoiceLineItem(li),
	}
	if snapshot.Items == nil {
		snapshot.Items = []InvoiceLineItem{}
	}
	out, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func (li *InvoiceLineItems) Scan(value interface{}) error {
	items, err := parseLineItemSnapshot(value)
	if err != nil {
		return err
	}
	*li = items
	return nil
}

func parseLineItemSnapshot(value interface{}) (InvoiceLineItems, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return InvoiceLineItems{}, nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil, fmt.Errorf("unsupported line item snapshot type %T", value)
	}

	var snapshot lineItemSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.Version <= 0 {
		return nil, errors.New("line item snapshot has no version")
	}
	if snapshot.Version > lineItemSnapshotVersion {
		return nil, fmt.Errorf("line item snapshot version %d is newer than supported version %d", snapshot.Version, lineItemSnapshotVersion)
	}
	return InvoiceLineItems(snapshot.Items), nil
}

// GormDataType keeps the column a JSON document on MySQL.
func (InvoiceLineItems) GormDataType() string {
	return "json"
}
