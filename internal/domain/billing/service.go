package billing

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type Service struct {
	tx       db.TxRunner
	payments PaymentRepository
	balances BalanceRepository
	ledger   TreatmentLedger
	logger   zerolog.Logger
}

func NewService(tx db.TxRunner, payments PaymentRepository, balances BalanceRepository, ledger TreatmentLedger) *Service {
	return &Service{tx: tx, payments: payments, balances: balances, ledger: ledger, logger: zerolog.Nop()}
}

// SetLogger attaches a logger used to report failed ledger transactions.
func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// -- Payment Ledger --

// AddPayment records p and, when it references a treatment, raises that
// treatment's amount_paid in the same transaction.
func (s *Service) AddPayment(ctx context.Context, p *Payment) error {
	if p.Amount.IsNegative() {
		return apperr.Validation("amount must not be negative")
	}
	p.Mode = strings.TrimSpace(p.Mode)
	if p.Mode == "" {
		p.Mode = DefaultPaymentMode
	}
	if p.Remarks != nil && strings.TrimSpace(*p.Remarks) == "" {
		p.Remarks = nil
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		if p.TreatmentID == nil {
			return nil
		}
		return s.ledger.AddTreatmentPayment(ctx, *p.TreatmentID, p.Amount)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("amount", p.Amount.String()).Msg("add payment failed")
		return apperr.Transaction("add payment", err)
	}
	return nil
}

// DeletePayment removes a payment and reverses its effect on the referenced
// treatment, flooring amount_paid at zero.
func (s *Service) DeletePayment(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("invalid payment id")
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.payments.Delete(ctx, id); err != nil {
			return err
		}
		if p.TreatmentID == nil {
			return nil
		}
		return s.ledger.AddTreatmentPayment(ctx, *p.TreatmentID, p.Amount.Neg())
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("payment_id", id).Msg("delete payment failed")
		return apperr.Transaction("delete payment", err)
	}
	return nil
}

func (s *Service) ListPayments(ctx context.Context, limit, offset int) ([]*PaymentView, int, error) {
	return s.payments.List(ctx, limit, offset)
}

// -- Balance Aggregator --

// PatientSummary returns every patient's charges, payments and balances,
// ordered by name with ties broken by id.
func (s *Service) PatientSummary(ctx context.Context) ([]PatientBalance, error) {
	totals, err := s.balances.PatientTotals(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PatientBalance, len(totals))
	for i, t := range totals {
		out[i] = ComputeBalance(t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PatientID < out[j].PatientID
	})
	return out, nil
}

func (s *Service) ListBills(ctx context.Context, limit, offset int) ([]*Bill, int, error) {
	bills, total, err := s.balances.ListBillHeaders(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, len(bills))
	for i, b := range bills {
		ids[i] = b.PurchaseID
	}
	lines, err := s.balances.BillLines(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, b := range bills {
		b.settle(lines[b.PurchaseID])
	}
	return bills, total, nil
}

// GetBill returns one purchase with its lines, total, paid amount and the
// latest payment's mode and remarks.
func (s *Service) GetBill(ctx context.Context, purchaseID int64) (*Bill, error) {
	if purchaseID <= 0 {
		return nil, apperr.Validation("invalid purchase id")
	}
	b, err := s.balances.GetBillHeader(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	lines, err := s.balances.BillLines(ctx, []int64{purchaseID})
	if err != nil {
		return nil, err
	}
	b.Lines = lines[purchaseID]
	b.settle(b.Lines)
	return b, nil
}

func (s *Service) BillLines(ctx context.Context, purchaseID int64) ([]BillLine, error) {
	b, err := s.GetBill(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if b.Lines == nil {
		return []BillLine{}, nil
	}
	return b.Lines, nil
}
