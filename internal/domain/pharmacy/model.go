package pharmacy

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/pkg/jsonnum"
)

// LineRequest asks for quantity units of one item. Zero values mean the
// field was absent from the request.
type LineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

func (l LineRequest) valid() bool {
	return l.ItemID > 0 && l.Quantity > 0
}

// UnmarshalJSON accepts item ids and quantities as numbers or numeric strings.
func (l *LineRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		ItemID   jsonnum.Int64 `json:"item_id"`
		Quantity jsonnum.Int64 `json:"quantity"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.ItemID, l.Quantity = int64(aux.ItemID), int(aux.Quantity)
	return nil
}

// PurchaseRequest creates a purchase and, when AmountPaid is positive, its
// initial payment.
type PurchaseRequest struct {
	PatientID  int64           `json:"patient_id"`
	PharmacyID *int64          `json:"pharmacy_id"`
	Items      []LineRequest   `json:"items"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Mode       string          `json:"mode"`
	Remarks    *string         `json:"remarks"`
}

// UnmarshalJSON accepts patient_id and pharmacy_id as numbers or numeric
// strings.
func (r *PurchaseRequest) UnmarshalJSON(data []byte) error {
	type plain PurchaseRequest
	aux := struct {
		*plain
		PatientID  jsonnum.Int64  `json:"patient_id"`
		PharmacyID *jsonnum.Int64 `json:"pharmacy_id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.PatientID = int64(aux.PatientID)
	r.PharmacyID = aux.PharmacyID.Ptr()
	return nil
}

type Purchase struct {
	ID           int64     `json:"purchase_id"`
	PatientID    int64     `json:"patient_id"`
	PharmacyID   *int64    `json:"pharmacy_id"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// PurchaseItem is one purchased line. Price is the item's price when the
// line was written and never follows later catalog changes.
type PurchaseItem struct {
	ID         int64           `json:"purchase_item_id"`
	PurchaseID int64           `json:"purchase_id"`
	ItemID     int64           `json:"item_id"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type PurchaseResult struct {
	PurchaseID int64           `json:"purchase_id"`
	Total      decimal.Decimal `json:"total"`
	Lines      []PurchaseItem  `json:"items"`
	Skipped    int             `json:"skipped_lines"`
	PaymentID  *int64          `json:"payment_id,omitempty"`
}

// PurchaseSummary is a purchase as listed on a patient's history.
type PurchaseSummary struct {
	PurchaseID   int64           `json:"purchase_id"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Items        string          `json:"items"`
	Total        decimal.Decimal `json:"total"`
}
