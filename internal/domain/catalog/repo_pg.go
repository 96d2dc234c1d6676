package catalog

import (
	"context"
	"errors"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

func deleteByID(ctx context.Context, q queryable, entity, sql string, id int64) error {
	tag, err := q.Exec(ctx, sql, id)
	if err != nil {
		return apperr.Store("delete "+entity, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func (r *departmentRepoPG) List(ctx context.Context) ([]*Department, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT department_id, name, description FROM departments ORDER BY department_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `patient_id, name, gender, phone, dob, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (name, gender, phone, dob) VALUES ($1, $2, $3, $4)
		RETURNING patient_id, created_at`,
		p.Name, p.Gender, p.Phone, p.DOB).Scan(&p.ID, &p.CreatedAt)
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, connFor(ctx, r.pool), "patient", `DELETE FROM patients WHERE patient_id = $1`, id)
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY patient_id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Gender, &p.Phone, &p.DOB, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &p)
	}
	return items, total, rows.Err()
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (name, specialization, visiting_hours, phone, department_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING doctor_id`,
		d.Name, d.Specialization, d.VisitingHours, d.Phone, d.DepartmentID).Scan(&d.ID)
}

func (r *doctorRepoPG) List(ctx context.Context) ([]*Doctor, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT doctor_id, name, specialization, visiting_hours, phone, department_id
		FROM doctors ORDER BY doctor_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.VisitingHours, &d.Phone, &d.DepartmentID); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository { return &itemRepoPG{pool: pool} }

const itemCols = `item_id, item_name, brand, price, stock_qty, expiry_date, pharmacy_id`

func (r *itemRepoPG) Create(ctx context.Context, it *Item) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO items (item_name, brand, price, stock_qty, expiry_date, pharmacy_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING item_id`,
		it.Name, it.Brand, it.Price, it.StockQty, it.ExpiryDate, it.PharmacyID).Scan(&it.ID)
}

func (r *itemRepoPG) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, connFor(ctx, r.pool), "item", `DELETE FROM items WHERE item_id = $1`, id)
}

func (r *itemRepoPG) List(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+itemCols+` FROM items ORDER BY item_id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Brand, &it.Price, &it.StockQty, &it.ExpiryDate, &it.PharmacyID); err != nil {
			return nil, 0, err
		}
		items = append(items, &it)
	}
	return items, total, rows.Err()
}

// CurrentPrice reads the price without locking the row; concurrent price
// changes are not serialized against in-flight purchases.
func (r *itemRepoPG) CurrentPrice(ctx context.Context, id int64) (decimal.Decimal, bool, error) {
	var price decimal.Decimal
	err := connFor(ctx, r.pool).QueryRow(ctx, `SELECT price FROM items WHERE item_id = $1`, id).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return price, true, nil
}

func (r *itemRepoPG) DecrementStock(ctx context.Context, id int64, qty int) error {
	_, err := connFor(ctx, r.pool).Exec(ctx,
		`UPDATE items SET stock_qty = GREATEST(stock_qty - $2, 0) WHERE item_id = $1`, id, qty)
	return apperr.Store("decrement stock", err)
}

// =========== Treatment Repository ===========

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentRepoPG(pool *pgxpool.Pool) TreatmentRepository { return &treatmentRepoPG{pool: pool} }

func (r *treatmentRepoPG) Create(ctx context.Context, t *Treatment) error {
	return connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO treatment_records (patient_id, doctor_id, diagnosis, fees, amount_paid)
		VALUES ($1, $2, $3, $4, $5) RETURNING record_id, date_of_treatment`,
		t.PatientID, t.DoctorID, t.Diagnosis, t.Fees, t.AmountPaid).Scan(&t.ID, &t.TreatmentDate)
}

func (r *treatmentRepoPG) Delete(ctx context.Context, id int64) error {
	return deleteByID(ctx, connFor(ctx, r.pool), "treatment", `DELETE FROM treatment_records WHERE record_id = $1`, id)
}

func (r *treatmentRepoPG) List(ctx context.Context, limit, offset int) ([]*Treatment, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM treatment_records`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `
		SELECT t.record_id, t.patient_id, p.name, t.doctor_id, d.name,
			t.date_of_treatment, t.diagnosis, t.fees, t.amount_paid
		FROM treatment_records t
		LEFT JOIN patients p ON t.patient_id = p.patient_id
		LEFT JOIN doctors d ON t.doctor_id = d.doctor_id
		ORDER BY t.record_id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Treatment
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.ID, &t.PatientID, &t.PatientName, &t.DoctorID, &t.DoctorName,
			&t.TreatmentDate, &t.Diagnosis, &t.Fees, &t.AmountPaid); err != nil {
			return nil, 0, err
		}
		t.ComputeBalance()
		items = append(items, &t)
	}
	return items, total, rows.Err()
}

func (r *treatmentRepoPG) AddAmountPaid(ctx context.Context, id int64, delta decimal.Decimal) (bool, error) {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE treatment_records SET amount_paid = GREATEST(amount_paid + $2, 0)
		WHERE record_id = $1`, id, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
