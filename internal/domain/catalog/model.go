package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date serialized as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(t time.Time) *Date {
	d := Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
	return &d
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts a plain date or a full RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
		}
	}
	*d = *NewDate(t)
	return nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = v
	case string:
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return err
		}
		d.Time = t
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

type Department struct {
	ID          int64   `json:"department_id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type Patient struct {
	ID        int64     `json:"patient_id"`
	Name      string    `json:"name"`
	Gender    *string   `json:"gender,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	DOB       *Date     `json:"dob,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Doctor struct {
	ID             int64   `json:"doctor_id"`
	Name           string  `json:"name"`
	Specialization *string `json:"specialization,omitempty"`
	VisitingHours  *string `json:"visiting_hours,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	DepartmentID   *int64  `json:"department_id,omitempty"`
}

// Item is a pharmacy stock entry. Price is the current catalog price; line
// items copy it at purchase time.
type Item struct {
	ID         int64           `json:"item_id"`
	Name       string          `json:"item_name"`
	Brand      *string         `json:"brand,omitempty"`
	Price      decimal.Decimal `json:"price"`
	StockQty   int             `json:"stock_qty"`
	ExpiryDate *Date           `json:"expiry_date,omitempty"`
	PharmacyID *int64          `json:"pharmacy_id,omitempty"`
}

// DefaultPharmacyID is the pharmacy new items belong to when none is given.
const DefaultPharmacyID int64 = 1

// Treatment is a treatment record. AmountPaid is a running total kept in
// step with treatment payments by the payment ledger.
type Treatment struct {
	ID            int64           `json:"record_id"`
	PatientID     int64           `json:"patient_id"`
	PatientName   *string         `json:"patient_name,omitempty"`
	DoctorID      *int64          `json:"doctor_id,omitempty"`
	DoctorName    *string         `json:"doctor_name,omitempty"`
	TreatmentDate time.Time       `json:"treatment_date"`
	Diagnosis     *string         `json:"diagnosis,omitempty"`
	Fees          decimal.Decimal `json:"fees"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Balance       decimal.Decimal `json:"balance"`
}

// ComputeBalance sets Balance to fees minus amount paid. The result may be
// negative when a treatment has been over-paid.
func (t *Treatment) ComputeBalance() {
	t.Balance = t.Fees.Sub(t.AmountPaid)
}
