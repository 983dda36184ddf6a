package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
)

// CheckFunc validates a payment against the order row locked for it.
// Returning an error aborts the transaction before anything is written.
type CheckFunc func(o *models.Order) error

type MethodTotal struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	Total         float64              `json:"total"`
	Count         int64                `json:"count"`
}

type Store interface {
	// Create locks the order, runs check, inserts p with its splits and
	// recomputes the order's paid amount and payment status.
	Create(ctx context.Context, p *models.Payment, check CheckFunc) (*models.Order, error)
	// Refund marks a completed payment refunded and recomputes its order.
	Refund(ctx context.Context, paymentID uint, reason string) (*models.Payment, *models.Order, error)
	Get(ctx context.Context, id uint) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.Payment, error)
	Order(ctx context.Context, id uint) (*models.Order, error)
	// MethodTotals sums completed payments of an order per method, split
	// parts counted under their own method.
	MethodTotals(ctx context.Context, orderID uint) ([]MethodTotal, error)
}

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func lockOrder(tx *gorm.DB, id uint) (*models.Order, error) {
	var o models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return &o, nil
}

// settle recomputes paid amount and payment status from every completed
// payment of o. The bill time is stamped by the first payment only.
func (s *gormStore) settle(tx *gorm.DB, o *models.Order) error {
	var paid float64
	if err := tx.Model(&models.Payment{}).
		Where("order_id = ? AND payment_status = ?", o.ID, models.PaymentCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error; err != nil {
		return fmt.Errorf("sum payments: %w", err)
	}
	o.PaidAmount = paid
	o.PaymentStatus = DeriveStatus(paid, o.TotalAmount)
	updates := map[string]any{
		"paid_amount":    o.PaidAmount,
		"payment_status": o.PaymentStatus,
	}
	if o.BillGeneratedAt == nil {
		now := s.now()
		o.BillGeneratedAt = &now
		updates["bill_generated_at"] = now
	}
	if err := tx.Model(o).Updates(updates).Error; err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}
	return nil
}

func (s *gormStore) Create(ctx context.Context, p *models.Payment, check CheckFunc) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(tx, p.OrderID)
		if err != nil {
			return err
		}
		if err := check(o); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := s.settle(tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *gormStore) Refund(ctx context.Context, paymentID uint, reason string) (*models.Payment, *models.Order, error) {
	var (
		pay   models.Payment
		order *models.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pay, paymentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment %d: %w", paymentID, err)
		}
		o, err := lockOrder(tx, pay.OrderID)
		if err != nil {
			return err
		}
		if pay.PaymentStatus != models.PaymentCompleted {
			return errAlreadyRefunded
		}
		pay.PaymentStatus = models.PaymentRefunded
		pay.Notes = reason
		if err := tx.Model(&pay).Updates(map[string]any{
			"payment_status": pay.PaymentStatus,
			"notes":          pay.Notes,
		}).Error; err != nil {
			return fmt.Errorf("refund payment %d: %w", paymentID, err)
		}
		if err := s.settle(tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &pay, order, nil
}

var errAlreadyRefunded = errors.New("payment already refunded")

func (s *gormStore) Get(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Preload("Splits").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return &p, nil
}

func (s *gormStore) ListByOrder(ctx context.Context, orderID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := s.db.WithContext(ctx).Preload("Splits").
		Where("order_id = ?", orderID).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func (s *gormStore) Order(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &o, nil
}

func (s *gormStore) MethodTotals(ctx context.Context, orderID uint) ([]MethodTotal, error) {
	var out []MethodTotal
	err := s.db.WithContext(ctx).Raw(`
		SELECT method AS payment_method, SUM(amount) AS total, COUNT(*) AS count FROM (
			SELECT p.payment_method AS method, p.amount
			FROM payments p
			WHERE p.order_id = ? AND p.payment_status = ? AND p.payment_method <> ?
			UNION ALL
			SELECT ps.payment_method, ps.split_amount
			FROM payment_splits ps JOIN payments p ON p.id = ps.payment_id
			WHERE p.order_id = ? AND p.payment_status = ?
		) t
		GROUP BY method
		ORDER BY method`,
		orderID, models.PaymentCompleted, models.MethodSplit,
		orderID, models.PaymentCompleted).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("payment totals by method: %w", err)
	}
	return out, nil
}
