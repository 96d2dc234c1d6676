package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// unknownItemName labels lines whose item was missing when captured.
const unknownItemName = "Unknown item"

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepoPG{pool: pool}
}

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const payCols = `payment_id, patient_id, treatment_id, purchase_id, amount, mode, remarks, bill_date`

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (patient_id, treatment_id, purchase_id, amount, mode, remarks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING payment_id, bill_date`,
		p.PatientID, p.TreatmentID, p.PurchaseID, p.Amount, p.Mode, p.Remarks,
	).Scan(&p.ID, &p.BillDate)
	return apperr.Store("insert payment", err)
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+payCols+` FROM payments WHERE payment_id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.TreatmentID, &p.PurchaseID, &p.Amount, &p.Mode, &p.Remarks, &p.BillDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("payment", id)
	}
	if err != nil {
		return nil, apperr.Store("get payment", err)
	}
	return &p, nil
}

func (r *paymentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM payments WHERE payment_id = $1`, id)
	if err != nil {
		return apperr.Store("delete payment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment", id)
	}
	return nil
}

func (r *paymentRepoPG) List(ctx context.Context, limit, offset int) ([]*PaymentView, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count payments", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT p.payment_id, p.patient_id, p.treatment_id, p.purchase_id, p.amount, p.mode, p.remarks, p.bill_date,
			pt.name, tr.diagnosis, d.name,
			(SELECT string_agg(COALESCE(i.item_name, $3) || ' x' || pi.quantity, ', ' ORDER BY pi.purchase_item_id)
			   FROM purchase_items pi LEFT JOIN items i ON i.item_id = pi.item_id
			  WHERE pi.purchase_id = p.purchase_id)
		FROM payments p
		LEFT JOIN patients pt ON pt.patient_id = p.patient_id
		LEFT JOIN treatment_records tr ON tr.record_id = p.treatment_id
		LEFT JOIN doctors d ON d.doctor_id = tr.doctor_id
		ORDER BY p.bill_date DESC, p.payment_id DESC
		LIMIT $1 OFFSET $2`, limit, offset, unknownItemName)
	if err != nil {
		return nil, 0, apperr.Store("list payments", err)
	}
	defer rows.Close()

	var items []*PaymentView
	for rows.Next() {
		var v PaymentView
		if err := rows.Scan(&v.ID, &v.PatientID, &v.TreatmentID, &v.PurchaseID, &v.Amount, &v.Mode, &v.Remarks, &v.BillDate,
			&v.PatientName, &v.Diagnosis, &v.DoctorName, &v.PurchaseItems); err != nil {
			return nil, 0, err
		}
		items = append(items, &v)
	}
	return items, total, rows.Err()
}

// =========== Balance Repository ===========

type balanceRepoPG struct{ pool *pgxpool.Pool }

func NewBalanceRepoPG(pool *pgxpool.Pool) BalanceRepository {
	return &balanceRepoPG{pool: pool}
}

func (r *balanceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// Each sum is a correlated subquery so joining treatments and purchases
// cannot multiply rows into each other's totals.
func (r *balanceRepoPG) PatientTotals(ctx context.Context) ([]PatientTotals, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pt.patient_id, pt.name,
			COALESCE((SELECT SUM(tr.fees) FROM treatment_records tr WHERE tr.patient_id = pt.patient_id), 0),
			COALESCE((SELECT SUM(tr.amount_paid) FROM treatment_records tr WHERE tr.patient_id = pt.patient_id), 0),
			COALESCE((SELECT SUM(pi.quantity * pi.price)
			            FROM purchase_items pi JOIN purchases pu ON pu.purchase_id = pi.purchase_id
			           WHERE pu.patient_id = pt.patient_id), 0),
			COALESCE((SELECT SUM(pay.amount)
			            FROM payments pay JOIN purchases pu ON pu.purchase_id = pay.purchase_id
			           WHERE pu.patient_id = pt.patient_id), 0)
		FROM patients pt
		ORDER BY pt.name ASC, pt.patient_id ASC`)
	if err != nil {
		return nil, apperr.Store("patient totals", err)
	}
	defer rows.Close()

	var out []PatientTotals
	for rows.Next() {
		var t PatientTotals
		if err := rows.Scan(&t.PatientID, &t.Name, &t.TreatmentTotal, &t.TreatmentPaid, &t.PharmacyTotal, &t.PharmacyPaid); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const billHeaderSelect = `
	SELECT pu.purchase_id, pu.patient_id, pt.name, pu.purchase_date,
		COALESCE((SELECT SUM(pay.amount) FROM payments pay WHERE pay.purchase_id = pu.purchase_id), 0),
		lp.mode, lp.remarks
	FROM purchases pu
	LEFT JOIN patients pt ON pt.patient_id = pu.patient_id
	LEFT JOIN LATERAL (
		SELECT pay.mode, pay.remarks FROM payments pay
		 WHERE pay.purchase_id = pu.purchase_id
		 ORDER BY pay.bill_date DESC, pay.payment_id DESC
		 LIMIT 1
	) lp ON true`

func scanBillHeader(row pgx.Row) (*Bill, error) {
	var b Bill
	if err := row.Scan(&b.PurchaseID, &b.PatientID, &b.PatientName, &b.BillDate, &b.Paid, &b.PaymentMode, &b.Remarks); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepoPG) ListBillHeaders(ctx context.Context, limit, offset int) ([]*Bill, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM purchases`).Scan(&total); err != nil {
		return nil, 0, apperr.Store("count bills", err)
	}

	rows, err := r.conn(ctx).Query(ctx, billHeaderSelect+`
		ORDER BY pu.purchase_date DESC, pu.purchase_id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store("list bills", err)
	}
	defer rows.Close()

	var items []*Bill
	for rows.Next() {
		b, err := scanBillHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *balanceRepoPG) GetBillHeader(ctx context.Context, purchaseID int64) (*Bill, error) {
	b, err := scanBillHeader(r.conn(ctx).QueryRow(ctx, billHeaderSelect+` WHERE pu.purchase_id = $1`, purchaseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("purchase", purchaseID)
	}
	if err != nil {
		return nil, apperr.Store("get bill", err)
	}
	return b, nil
}

func (r *balanceRepoPG) BillLines(ctx context.Context, purchaseIDs []int64) (map[int64][]BillLine, error) {
	out := make(map[int64][]BillLine, len(purchaseIDs))
	if len(purchaseIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pi.purchase_id, pi.purchase_item_id, pi.item_id, COALESCE(i.item_name, $2), i.brand, pi.quantity, pi.price
		FROM purchase_items pi
		LEFT JOIN items i ON i.item_id = pi.item_id
		WHERE pi.purchase_id = ANY($1)
		ORDER BY pi.purchase_id, pi.purchase_item_id`, purchaseIDs, unknownItemName)
	if err != nil {
		return nil, apperr.Store("bill lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var purchaseID int64
		var l BillLine
		if err := rows.Scan(&purchaseID, &l.LineID, &l.ItemID, &l.Name, &l.Brand, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		out[purchaseID] = append(out[purchaseID], l)
	}
	return out, rows.Err()
}
