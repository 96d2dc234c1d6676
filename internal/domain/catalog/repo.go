package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

type DepartmentRepository interface {
	List(ctx context.Context) ([]*Department, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	List(ctx context.Context) ([]*Doctor, error)
}

type ItemRepository interface {
	Create(ctx context.Context, it *Item) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Item, int, error)
	// CurrentPrice reports the catalog price of an item and whether it exists.
	CurrentPrice(ctx context.Context, id int64) (decimal.Decimal, bool, error)
	// DecrementStock lowers stock_qty by qty, never below zero.
	DecrementStock(ctx context.Context, id int64, qty int) error
}

type TreatmentRepository interface {
	Create(ctx context.Context, t *Treatment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*Treatment, int, error)
	// AddAmountPaid adjusts the running paid total by delta, never letting it
	// drop below zero. It reports whether the treatment exists.
	AddAmountPaid(ctx context.Context, id int64, delta decimal.Decimal) (bool, error)
}
