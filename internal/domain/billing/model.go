package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/pkg/jsonnum"
)

// DefaultPaymentMode is recorded when a payment does not name one.
const DefaultPaymentMode = "Cash"

// Payment is a single ledger entry. Each reference is optional and
// independent of the others.
type Payment struct {
	ID          int64           `json:"payment_id"`
	PatientID   *int64          `json:"patient_id"`
	TreatmentID *int64          `json:"treatment_id"`
	PurchaseID  *int64          `json:"purchase_id"`
	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"mode"`
	Remarks     *string         `json:"remarks"`
	BillDate    time.Time       `json:"bill_date"`
}

// PaymentRequest is the body of a new payment. References may arrive as
// numbers or numeric strings; zero or empty means no reference.
type PaymentRequest struct {
	PatientID   *jsonnum.Int64  `json:"patient_id"`
	TreatmentID *jsonnum.Int64  `json:"treatment_id"`
	PurchaseID  *jsonnum.Int64  `json:"purchase_id"`
	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"mode"`
	Remarks     *string         `json:"remarks"`
}

func (r *PaymentRequest) Payment() *Payment {
	return &Payment{
		PatientID:   r.PatientID.Ptr(),
		TreatmentID: r.TreatmentID.Ptr(),
		PurchaseID:  r.PurchaseID.Ptr(),
		Amount:      r.Amount,
		Mode:        r.Mode,
		Remarks:     r.Remarks,
	}
}

// PaymentView is a payment joined with the names it refers to.
type PaymentView struct {
	Payment
	PatientName   *string `json:"patient_name"`
	Diagnosis     *string `json:"diagnosis"`
	DoctorName    *string `json:"doctor_name"`
	PurchaseItems *string `json:"purchase_items"`
}

// PatientTotals holds the four per-patient sums the summary is derived from.
type PatientTotals struct {
	PatientID      int64           `json:"patient_id"`
	Name           string          `json:"name"`
	TreatmentTotal decimal.Decimal `json:"treatment_total"`
	TreatmentPaid  decimal.Decimal `json:"treatment_paid"`
	PharmacyTotal  decimal.Decimal `json:"pharmacy_total"`
	PharmacyPaid   decimal.Decimal `json:"pharmacy_paid"`
}

type PatientBalance struct {
	PatientTotals
	TreatmentBalance decimal.Decimal `json:"treatment_balance"`
	PharmacyBalance  decimal.Decimal `json:"pharmacy_balance"`
	TotalDue         decimal.Decimal `json:"total_due"`
}

// ComputeBalance derives the outstanding amounts. Overpayment yields a
// negative balance.
func ComputeBalance(t PatientTotals) PatientBalance {
	tb := t.TreatmentTotal.Sub(t.TreatmentPaid)
	pb := t.PharmacyTotal.Sub(t.PharmacyPaid)
	return PatientBalance{
		PatientTotals:    t,
		TreatmentBalance: tb,
		PharmacyBalance:  pb,
		TotalDue:         tb.Add(pb),
	}
}

// Bill is a purchase presented with its charges and payments.
type Bill struct {
	PurchaseID  int64           `json:"purchase_id"`
	PatientID   int64           `json:"patient_id"`
	PatientName *string         `json:"patient_name"`
	BillDate    time.Time       `json:"bill_date"`
	ItemsDetail string          `json:"items_detail"`
	Lines       []BillLine      `json:"lines,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
	Balance     decimal.Decimal `json:"balance"`
	PaymentMode *string         `json:"payment_mode"`
	Remarks     *string         `json:"remarks"`
}

type BillLine struct {
	LineID    int64           `json:"purchase_item_id"`
	ItemID    int64           `json:"item_id"`
	Name      string          `json:"item_name"`
	Brand     *string         `json:"brand"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// FormatItemsDetail renders lines as "name (qty x price)" joined by ", ".
// Lines must already be in line id order.
func FormatItemsDetail(lines []BillLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%s (%d x %s)", l.Name, l.Quantity, l.Price.StringFixed(2))
	}
	return strings.Join(parts, ", ")
}

// settle fills the bill's derived fields from its lines.
func (b *Bill) settle(lines []BillLine) {
	b.Total = decimal.Zero
	for i := range lines {
		lines[i].LineTotal = lines[i].Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		b.Total = b.Total.Add(lines[i].LineTotal)
	}
	b.ItemsDetail = FormatItemsDetail(lines)
	b.Balance = b.Total.Sub(b.Paid)
}
