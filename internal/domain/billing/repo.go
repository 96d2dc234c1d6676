package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*PaymentView, int, error)
}

type BalanceRepository interface {
	PatientTotals(ctx context.Context) ([]PatientTotals, error)
	ListBillHeaders(ctx context.Context, limit, offset int) ([]*Bill, int, error)
	GetBillHeader(ctx context.Context, purchaseID int64) (*Bill, error)
	// BillLines returns the lines of each purchase keyed by purchase id, in line id order.
	BillLines(ctx context.Context, purchaseIDs []int64) (map[int64][]BillLine, error)
}

// TreatmentLedger adjusts the running amount_paid of a treatment record,
// never letting it drop below zero.
type TreatmentLedger interface {
	AddTreatmentPayment(ctx context.Context, id int64, delta decimal.Decimal) error
}
