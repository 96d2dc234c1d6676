package pharmacy

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type purchaseRepoPG struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepoPG(pool *pgxpool.Pool) PurchaseRepository {
	return &purchaseRepoPG{pool: pool}
}

func (r *purchaseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *purchaseRepoPG) CreateHeader(ctx context.Context, p *Purchase) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO purchases (patient_id, pharmacy_id)
		VALUES ($1, $2)
		RETURNING purchase_id, purchase_date`,
		p.PatientID, p.PharmacyID,
	).Scan(&p.ID, &p.PurchaseDate)
	return apperr.Store("insert purchase", err)
}

func (r *purchaseRepoPG) AddLine(ctx context.Context, line *PurchaseItem) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO purchase_items (purchase_id, item_id, quantity, price)
		VALUES ($1, $2, $3, $4)
		RETURNING purchase_item_id`,
		line.PurchaseID, line.ItemID, line.Quantity, line.Price,
	).Scan(&line.ID)
	return apperr.Store("insert purchase item", err)
}

func (r *purchaseRepoPG) Total(ctx context.Context, purchaseID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity * price), 0) FROM purchase_items WHERE purchase_id = $1`,
		purchaseID).Scan(&total)
	if err != nil {
		return decimal.Zero, apperr.Store("purchase total", err)
	}
	return total, nil
}

func (r *purchaseRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*PurchaseSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pu.purchase_id, pu.purchase_date,
			COALESCE(string_agg(COALESCE(i.item_name, 'Unknown item') || ' x' || pi.quantity, ', ' ORDER BY pi.purchase_item_id), ''),
			COALESCE(SUM(pi.quantity * pi.price), 0)
		FROM purchases pu
		LEFT JOIN purchase_items pi ON pi.purchase_id = pu.purchase_id
		LEFT JOIN items i ON i.item_id = pi.item_id
		WHERE pu.patient_id = $1
		GROUP BY pu.purchase_id, pu.purchase_date
		ORDER BY pu.purchase_date DESC, pu.purchase_id DESC`, patientID)
	if err != nil {
		return nil, apperr.Store("list purchases", err)
	}
	defer rows.Close()

	var out []*PurchaseSummary
	for rows.Next() {
		var s PurchaseSummary
		if err := rows.Scan(&s.PurchaseID, &s.PurchaseDate, &s.Items, &s.Total); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *purchaseRepoPG) DeleteLines(ctx context.Context, purchaseID int64) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM purchase_items WHERE purchase_id = $1`, purchaseID)
	return apperr.Store("delete purchase items", err)
}

func (r *purchaseRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM purchases WHERE purchase_id = $1`, id)
	if err != nil {
		return apperr.Store("delete purchase", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("purchase", id)
	}
	return nil
}
