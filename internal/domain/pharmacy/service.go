package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

// DefaultTxTimeout bounds a purchase transaction when none is configured.
const DefaultTxTimeout = 10 * time.Second

type Service struct {
	tx        db.TxRunner
	purchases PurchaseRepository
	items     ItemStock
	payments  PaymentRecorder
	strict    bool
	txTimeout time.Duration
	logger    zerolog.Logger
}

func NewService(tx db.TxRunner, purchases PurchaseRepository, items ItemStock, payments PaymentRecorder) *Service {
	return &Service{
		tx:        tx,
		purchases: purchases,
		items:     items,
		payments:  payments,
		txTimeout: DefaultTxTimeout,
		logger:    zerolog.Nop(),
	}
}

// SetLinePolicy switches between skipping invalid lines (false) and
// rejecting the whole purchase (true).
func (s *Service) SetLinePolicy(strict bool) {
	s.strict = strict
}

func (s *Service) SetTxTimeout(d time.Duration) {
	if d > 0 {
		s.txTimeout = d
	}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l
}

// pricedLine is a requested line whose price has been resolved.
type pricedLine struct {
	LineRequest
	price decimal.Decimal
	known bool
}

// CreatePurchase writes the purchase header, its lines at the items' current
// prices and the optional initial payment as one unit of work, drawing down
// stock for every line whose item exists. Nothing persists unless every
// step succeeds.
func (s *Service) CreatePurchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	if req.PatientID <= 0 {
		return nil, apperr.Validation("patient_id is required")
	}
	if len(req.Items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	if req.AmountPaid.IsNegative() {
		return nil, apperr.Validation("amount_paid must not be negative")
	}

	var valid []LineRequest
	for i, l := range req.Items {
		if l.valid() {
			valid = append(valid, l)
			continue
		}
		if s.strict {
			return nil, apperr.Validation("item %d: item_id and a positive quantity are required", i+1)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	result := &PurchaseResult{Skipped: len(req.Items) - len(valid)}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Prices are resolved before the first write so a strict rejection
		// leaves nothing behind even inside the transaction.
		lines, err := s.priceLines(ctx, valid)
		if err != nil {
			return err
		}

		p := &Purchase{PatientID: req.PatientID, PharmacyID: req.PharmacyID}
		if err := s.purchases.CreateHeader(ctx, p); err != nil {
			return err
		}
		result.PurchaseID = p.ID

		result.Lines = make([]PurchaseItem, 0, len(lines))
		for _, l := range lines {
			item := PurchaseItem{PurchaseID: p.ID, ItemID: l.ItemID, Quantity: l.Quantity, Price: l.price}
			if err := s.purchases.AddLine(ctx, &item); err != nil {
				return err
			}
			result.Lines = append(result.Lines, item)
			if !l.known {
				continue
			}
			if err := s.items.DecrementStock(ctx, l.ItemID, l.Quantity); err != nil {
				return err
			}
		}

		if result.Total, err = s.purchases.Total(ctx, p.ID); err != nil {
			return err
		}

		if !req.AmountPaid.IsPositive() {
			return nil
		}
		pay := &billing.Payment{
			PatientID:  &req.PatientID,
			PurchaseID: &p.ID,
			Amount:     req.AmountPaid,
			Mode:       strings.TrimSpace(req.Mode),
			Remarks:    req.Remarks,
		}
		if pay.Mode == "" {
			pay.Mode = billing.DefaultPaymentMode
		}
		if err := s.payments.Create(ctx, pay); err != nil {
			return err
		}
		result.PaymentID = &pay.ID
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).
			Int64("patient_id", req.PatientID).
			Int("lines", len(valid)).
			Msg("create purchase failed")
		return nil, apperr.Transaction("create purchase", err)
	}

	s.logger.Info().
		Int64("purchase_id", result.PurchaseID).
		Str("total", result.Total.StringFixed(2)).
		Int("skipped_lines", result.Skipped).
		Msg("purchase created")
	return result, nil
}

func (s *Service) priceLines(ctx context.Context, lines []LineRequest) ([]pricedLine, error) {
	out := make([]pricedLine, 0, len(lines))
	for _, l := range lines {
		price, ok, err := s.items.CurrentPrice(ctx, l.ItemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			if s.strict {
				return nil, apperr.NotFound("item", l.ItemID)
			}
			price = decimal.Zero
		}
		out = append(out, pricedLine{LineRequest: l, price: price, known: ok})
	}
	return out, nil
}

// ListPurchasesByPatient returns the patient's purchases, newest first.
func (s *Service) ListPurchasesByPatient(ctx context.Context, patientID int64) ([]*PurchaseSummary, error) {
	if patientID <= 0 {
		return nil, apperr.Validation("invalid patient id")
	}
	return s.purchases.ListByPatient(ctx, patientID)
}

// DeletePurchase removes the purchase and its lines together.
func (s *Service) DeletePurchase(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("invalid purchase id")
	}
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.purchases.DeleteLines(ctx, id); err != nil {
			return err
		}
		return s.purchases.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("purchase_id", id).Msg("delete purchase failed")
		return apperr.Transaction("delete purchase", err)
	}
	return nil
}
