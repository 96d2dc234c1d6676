package catalog

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type Service struct {
	departments DepartmentRepository
	patients    PatientRepository
	doctors     DoctorRepository
	items       ItemRepository
	treatments  TreatmentRepository
}

func NewService(dep DepartmentRepository, pat PatientRepository, doc DoctorRepository, it ItemRepository, tr TreatmentRepository) *Service {
	return &Service{departments: dep, patients: pat, doctors: doc, items: it, treatments: tr}
}

// -- Departments --

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.departments.List(ctx)
}

// -- Patients --

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	p.Gender = nilIfBlank(p.Gender)
	p.Phone = nilIfBlank(p.Phone)
	return apperr.Store("create patient", s.patients.Create(ctx, p))
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("invalid patient id")
	}
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	if d.DepartmentID != nil && *d.DepartmentID <= 0 {
		d.DepartmentID = nil
	}
	d.Specialization = nilIfBlank(d.Specialization)
	d.VisitingHours = nilIfBlank(d.VisitingHours)
	d.Phone = nilIfBlank(d.Phone)
	return apperr.Store("create doctor", s.doctors.Create(ctx, d))
}

func (s *Service) ListDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.List(ctx)
}

// -- Items --

func (s *Service) CreateItem(ctx context.Context, it *Item) error {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return apperr.Validation("item_name is required")
	}
	if it.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if it.StockQty < 0 {
		return apperr.Validation("stock_qty must not be negative")
	}
	if it.PharmacyID == nil {
		pid := DefaultPharmacyID
		it.PharmacyID = &pid
	}
	it.Brand = nilIfBlank(it.Brand)
	return apperr.Store("create item", s.items.Create(ctx, it))
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("invalid item id")
	}
	return s.items.Delete(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]*Item, int, error) {
	return s.items.List(ctx, limit, offset)
}

// -- Treatments --

func (s *Service) CreateTreatment(ctx context.Context, t *Treatment) error {
	if t.PatientID <= 0 {
		return apperr.Validation("patient_id is required")
	}
	if t.DoctorID != nil && *t.DoctorID <= 0 {
		t.DoctorID = nil
	}
	if t.Fees.IsNegative() || t.AmountPaid.IsNegative() {
		return apperr.Validation("fees and amount_paid must not be negative")
	}
	t.Diagnosis = nilIfBlank(t.Diagnosis)
	if err := s.treatments.Create(ctx, t); err != nil {
		return apperr.Store("create treatment", err)
	}
	t.ComputeBalance()
	return nil
}

func (s *Service) DeleteTreatment(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("invalid treatment id")
	}
	return s.treatments.Delete(ctx, id)
}

func (s *Service) ListTreatments(ctx context.Context, limit, offset int) ([]*Treatment, int, error) {
	return s.treatments.List(ctx, limit, offset)
}

// AddTreatmentPayment adjusts a treatment's running paid total. It satisfies
// the payment ledger's treatment hook.
func (s *Service) AddTreatmentPayment(ctx context.Context, id int64, delta decimal.Decimal) error {
	ok, err := s.treatments.AddAmountPaid(ctx, id, delta)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("treatment", id)
	}
	return nil
}

func nilIfBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
