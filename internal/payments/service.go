package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderCloser moves a fully paid order to served.
type OrderCloser interface {
	MarkServed(ctx context.Context, actor auth.Actor, orderID uint) error
}

type PayInput struct {
	OrderID              uint                 `json:"order_id"`
	Amount               float64              `json:"amount"`
	PaymentMethod        models.PaymentMethod `json:"payment_method"`
	TransactionReference string               `json:"transaction_reference"`
	CashReceived         *float64             `json:"cash_received"`
	PaidByName           string               `json:"paid_by_name"`
	Notes                string               `json:"notes"`
}

type SplitInput struct {
	Amount               float64              `json:"amount"`
	PaymentMethod        models.PaymentMethod `json:"payment_method"`
	PaidByName           string               `json:"paid_by_name"`
	TransactionReference string               `json:"transaction_reference"`
	Notes                string               `json:"notes"`
}

type Result struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order"`
}

type Summary struct {
	OrderID       uint                 `json:"order_id"`
	TotalAmount   float64              `json:"total_amount"`
	PaidAmount    float64              `json:"paid_amount"`
	Remaining     float64              `json:"remaining"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	PaymentCount  int                  `json:"payment_count"`
	RefundedCount int                  `json:"refunded_count"`
	ByMethod      []MethodTotal        `json:"by_method"`
}

type Service struct {
	store   Store
	orders  OrderCloser
	pub     realtime.Publisher
	audit   audit.Writer
	counter *prometheus.CounterVec
	log     *zap.Logger

	mu       sync.Mutex
	inFlight map[uint]struct{}
}

// NewService builds the payment service. counter may be nil.
func NewService(store Store, orders OrderCloser, pub realtime.Publisher, aw audit.Writer, counter *prometheus.CounterVec, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		pub:      pub,
		audit:    aw,
		counter:  counter,
		log:      log,
		inFlight: make(map[uint]struct{}),
	}
}

// begin marks a payment for orderID as in flight. A second submission for
// the same order is refused until release is called.
func (s *Service) begin(orderID uint) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[orderID]; busy {
		return nil, apperr.Conflict("A payment for this order is already being processed")
	}
	s.inFlight[orderID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, orderID)
		s.mu.Unlock()
	}, nil
}

func payable(o *models.Order) error {
	switch {
	case o.Status == models.OrderCancelled:
		return apperr.Conflict("Order %s is cancelled", o.OrderNumber)
	case o.PaymentStatus == models.PaymentPaid && Remaining(o.TotalAmount, o.PaidAmount) == 0:
		return apperr.Conflict("Order %s is already paid", o.OrderNumber)
	}
	return nil
}

// Pay records a single payment. The amount may not exceed the balance due
// by more than a paisa; once the order is fully paid it is marked served.
func (s *Service) Pay(ctx context.Context, actor auth.Actor, in PayInput) (*Result, error) {
	if !(in.Amount > 0) {
		return nil, apperr.Validation("Payment amount must be greater than zero")
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperr.Validation("Payment method must be cash, card or upi")
	}
	p := &models.Payment{
		OrderID:              in.OrderID,
		Amount:               money(in.Amount).InexactFloat64(),
		PaymentMethod:        in.PaymentMethod,
		PaymentStatus:        models.PaymentCompleted,
		TransactionReference: strings.TrimSpace(in.TransactionReference),
		PaidByName:           strings.TrimSpace(in.PaidByName),
		Notes:                in.Notes,
		CreatedBy:            actor.UserID,
	}
	if in.PaymentMethod == models.MethodCash && in.CashReceived != nil {
		if money(*in.CashReceived).LessThan(money(in.Amount)) {
			return nil, apperr.Validation("Cash received is less than the amount")
		}
		received := *in.CashReceived
		change := Change(in.Amount, received)
		p.CashReceived, p.ChangeAmount = &received, &change
	}

	release, err := s.begin(in.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.store.Create(ctx, p, func(o *models.Order) error {
		if err := payable(o); err != nil {
			return err
		}
		chk := CheckAmount(p.Amount, o.TotalAmount, o.PaidAmount)
		if !chk.Valid {
			return apperr.Validation("Payment of ₹%.2f exceeds the remaining balance of ₹%.2f", p.Amount, chk.Remaining)
		}
		return nil
	})
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.recorded(ctx, actor, p, order)
	return &Result{Payment: p, Order: order}, nil
}

// PaySplit settles the remaining balance with several parts in one payment.
// The parts must add up to the balance within the tolerance, otherwise
// nothing is recorded.
func (s *Service) PaySplit(ctx context.Context, actor auth.Actor, orderID uint, splits []SplitInput) (*Result, error) {
	if len(splits) == 0 {
		return nil, apperr.Validation("Add at least one split")
	}
	sum := decimal.Zero
	parts := make([]models.PaymentSplit, 0, len(splits))
	for i, sp := range splits {
		if !(sp.Amount > 0) {
			return nil, apperr.Validation("Split %d: amount must be greater than zero", i+1)
		}
		if !sp.PaymentMethod.Valid() {
			return nil, apperr.Validation("Split %d: payment method must be cash, card or upi", i+1)
		}
		amt := money(sp.Amount)
		sum = sum.Add(amt)
		parts = append(parts, models.PaymentSplit{
			SplitAmount:          amt.InexactFloat64(),
			PaymentMethod:        sp.PaymentMethod,
			PaidByName:           strings.TrimSpace(sp.PaidByName),
			TransactionReference: strings.TrimSpace(sp.TransactionReference),
			Notes:                sp.Notes,
		})
	}
	p := &models.Payment{
		OrderID:       orderID,
		Amount:        sum.InexactFloat64(),
		PaymentMethod: models.MethodSplit,
		PaymentStatus: models.PaymentCompleted,
		Notes:         fmt.Sprintf("Split payment (%d parts)", len(parts)),
		CreatedBy:     actor.UserID,
		Splits:        parts,
	}

	release, err := s.begin(orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.store.Create(ctx, p, func(o *models.Order) error {
		if err := payable(o); err != nil {
			return err
		}
		return CheckSplitTotal(sum.InexactFloat64(), Remaining(o.TotalAmount, o.PaidAmount))
	})
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.recorded(ctx, actor, p, order)
	return &Result{Payment: p, Order: order}, nil
}

// CheckSplitTotal accepts a split sum within Tolerance of remaining.
func CheckSplitTotal(sum, remaining float64) error {
	diff := money(sum).Sub(money(remaining)).Abs()
	if diff.GreaterThan(Tolerance) {
		return apperr.Validation("Split total ₹%.2f does not match the remaining balance of ₹%.2f", sum, remaining)
	}
	return nil
}

func (s *Service) storeErr(err error) error {
	if errors.Is(err, ErrOrderNotFound) {
		return apperr.NotFound("Order not found")
	}
	return err
}

func (s *Service) recorded(ctx context.Context, actor auth.Actor, p *models.Payment, o *models.Order) {
	if s.counter != nil {
		s.counter.WithLabelValues(string(p.PaymentMethod)).Inc()
	}
	s.pub.Publish(realtime.NewEvent(realtime.TablePayments, realtime.Insert, nil, p))
	s.pub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update, nil, o))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityPayment,
		EntityID:    p.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("₹%.2f %s payment on order %s", p.Amount, p.PaymentMethod, o.OrderNumber),
		After:       p,
	})
	s.log.Info("payment recorded",
		zap.Uint("order_id", o.ID), zap.String("method", string(p.PaymentMethod)),
		zap.Float64("amount", p.Amount), zap.String("payment_status", string(o.PaymentStatus)))

	if o.PaymentStatus != models.PaymentPaid {
		return
	}
	// A failed close leaves the payment recorded.
	if err := s.orders.MarkServed(ctx, actor, o.ID); err != nil {
		s.log.Warn("mark paid order served", zap.Uint("order_id", o.ID), zap.Error(err))
		return
	}
	o.Status = models.OrderServed
}

// Refund marks a payment refunded and recomputes the order's balance.
func (s *Service) Refund(ctx context.Context, actor auth.Actor, paymentID uint, reason string) (*Result, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("A refund reason is required")
	}
	before, err := s.store.Get(ctx, paymentID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, apperr.NotFound("Payment not found")
	}
	if err != nil {
		return nil, err
	}
	p, o, err := s.store.Refund(ctx, paymentID, reason)
	switch {
	case errors.Is(err, errAlreadyRefunded):
		return nil, apperr.Conflict("Payment has already been refunded")
	case errors.Is(err, ErrPaymentNotFound):
		return nil, apperr.NotFound("Payment not found")
	case err != nil:
		return nil, s.storeErr(err)
	}

	s.pub.Publish(realtime.NewEvent(realtime.TablePayments, realtime.Update, before, p))
	s.pub.Publish(realtime.NewEvent(realtime.TableOrders, realtime.Update, nil, o))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityPayment,
		EntityID:    p.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("₹%.2f payment on order %s refunded: %s", p.Amount, o.OrderNumber, reason),
		Before:      before,
		After:       p,
	})
	return &Result{Payment: p, Order: o}, nil
}

func (s *Service) List(ctx context.Context, orderID uint) ([]models.Payment, error) {
	return s.store.ListByOrder(ctx, orderID)
}

func (s *Service) Summary(ctx context.Context, orderID uint) (*Summary, error) {
	o, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	list, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	byMethod, err := s.store.MethodTotals(ctx, orderID)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		OrderID:       o.ID,
		TotalAmount:   o.TotalAmount,
		PaidAmount:    o.PaidAmount,
		Remaining:     Remaining(o.TotalAmount, o.PaidAmount),
		PaymentStatus: DeriveStatus(o.PaidAmount, o.TotalAmount),
		ByMethod:      byMethod,
	}
	if sum.ByMethod == nil {
		sum.ByMethod = []MethodTotal{}
	}
	for _, p := range list {
		if p.PaymentStatus == models.PaymentRefunded {
			sum.RefundedCount++
		} else {
			sum.PaymentCount++
		}
	}
	return sum, nil
}

// Check reports whether amount can be charged against the order right now.
func (s *Service) Check(ctx context.Context, orderID uint, amount float64) (*AmountCheck, error) {
	o, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	chk := CheckAmount(amount, o.TotalAmount, o.PaidAmount)
	return &chk, nil
}
