package pharmacy

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/billing"
)

type PurchaseRepository interface {
	CreateHeader(ctx context.Context, p *Purchase) error
	AddLine(ctx context.Context, line *PurchaseItem) error
	// Total sums quantity x captured price over the purchase's lines.
	Total(ctx context.Context, purchaseID int64) (decimal.Decimal, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*PurchaseSummary, error)
	DeleteLines(ctx context.Context, purchaseID int64) error
	Delete(ctx context.Context, id int64) error
}

// ItemStock prices purchase lines and draws down stock for them. ok is
// false when the item does not exist.
type ItemStock interface {
	CurrentPrice(ctx context.Context, itemID int64) (price decimal.Decimal, ok bool, err error)
	DecrementStock(ctx context.Context, itemID int64, qty int) error
}

// PaymentRecorder stores the initial payment of a purchase.
type PaymentRecorder interface {
	Create(ctx context.Context, p *billing.Payment) error
}
