package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout renders UTC instants with a literal Z suffix.
const TimestampLayout = "2006-01-02T15:04:05Z"

// UTCTime marshals as an ISO-8601 UTC string with second precision.
type UTCTime struct {
	time.Time
}

// NewUTCTime truncates t to whole seconds in UTC.
func NewUTCTime(t time.Time) UTCTime {
	return UTCTime{Time: t.UTC().Truncate(time.Second)}
}

// String formats the instant using TimestampLayout.
func (t UTCTime) String() string {
	return t.UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler.
func (t UTCTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts RFC 3339 strings and null.
func (t *UTCTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// LineItem is one requested order line.
type LineItem struct {
	SKU          string `json:"sku"`
	QtyRequested int    `json:"qty_requested"`
	UoM          string `json:"uom,omitempty"`
}

// ConfirmedItem is one order line as confirmed by the warehouse.
type ConfirmedItem struct {
	SKU          string `json:"sku"`
	QtyConfirmed int    `json:"qty_confirmed"`
	UoM          string `json:"uom,omitempty"`
}

// Flow is one order submission travelling SAP -> PO -> FW -> connector -> WMS.
type Flow struct {
	CorrelationID string
	SAPOrder      string
	IDocType      string
	IDocNumber    string
	Plant         string
	Schema        string
	Items         []LineItem
	PayloadHash   string
	SLADueSeconds int
	SentAt        UTCTime
}

// IDoc returns the IDoc reference block shared by events and rollups.
func (f Flow) IDoc() IDocRef {
	return IDocRef{IDocType: f.IDocType, Number: f.IDocNumber, Plant: f.Plant}
}

// Order returns the order block shared by business events and rollups.
func (f Flow) Order() OrderRef {
	return OrderRef{SAPOrder: f.SAPOrder, Items: append([]LineItem(nil), f.Items...)}
}

// IDocRef identifies the SAP IDoc carrying the order.
type IDocRef struct {
	IDocType string `json:"idoc_type"`
	Number   string `json:"number"`
	Plant    string `json:"plant"`
}

// OrderRef identifies the SAP order and its requested lines.
type OrderRef struct {
	SAPOrder string     `json:"sap_order"`
	Items    []LineItem `json:"items"`
}
