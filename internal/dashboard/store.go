package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
)

type OrderTotals struct {
	TotalOrders  int64   `gorm:"column:total_orders"`
	TotalRevenue float64 `gorm:"column:total_revenue"`
	OrdersToday  int64   `gorm:"column:orders_today"`
	ActiveOrders int64   `gorm:"column:active_orders"`
}

type RecipeSales struct {
	RecipeID   uint    `gorm:"column:recipe_id" json:"recipe_id"`
	Name       string  `gorm:"column:name" json:"name"`
	Category   string  `gorm:"column:category" json:"category"`
	UnitsSold  int64   `gorm:"column:units_sold" json:"units_sold"`
	Revenue    float64 `gorm:"column:revenue" json:"revenue"`
	OrderCount int64   `gorm:"column:order_count" json:"order_count"`
}

type Store interface {
	// MethodTotals sums completed payments per bucket and method in
	// [from, to). Split parts count under their own method.
	MethodTotals(ctx context.Context, period Period, from, to time.Time) ([]MethodRow, error)
	// OrderTotals covers non-cancelled orders in the optional range.
	OrderTotals(ctx context.Context, from, to *time.Time, todayStart time.Time) (*OrderTotals, error)
	TopRecipes(ctx context.Context, from, to *time.Time, limit int) ([]RecipeSales, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

var truncUnits = map[Period]string{Daily: "day", Weekly: "week", Monthly: "month"}

func (s *gormStore) MethodTotals(ctx context.Context, period Period, from, to time.Time) ([]MethodRow, error) {
	unit, ok := truncUnits[period]
	if !ok {
		return nil, fmt.Errorf("unknown period %q", period)
	}
	var rows []MethodRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT date_trunc(?, paid_at)::date AS bucket, method, SUM(amount) AS total FROM (
			SELECT p.created_at AS paid_at, p.payment_method AS method, p.amount
			FROM payments p
			WHERE p.payment_status = ? AND p.payment_method <> ? AND p.created_at >= ? AND p.created_at < ?
			UNION ALL
			SELECT p.created_at, ps.payment_method, ps.split_amount
			FROM payment_splits ps JOIN payments p ON p.id = ps.payment_id
			WHERE p.payment_status = ? AND p.created_at >= ? AND p.created_at < ?
		) t
		GROUP BY 1, 2
		ORDER BY 1`,
		unit,
		models.PaymentCompleted, models.MethodSplit, from, to,
		models.PaymentCompleted, from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sum payments by method: %w", err)
	}
	return rows, nil
}

func rangeScope(col string, from, to *time.Time) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if from != nil {
			q = q.Where(col+" >= ?", *from)
		}
		if to != nil {
			q = q.Where(col+" <= ?", *to)
		}
		return q
	}
}

func (s *gormStore) OrderTotals(ctx context.Context, from, to *time.Time, todayStart time.Time) (*OrderTotals, error) {
	var out OrderTotals
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select(`COUNT(*) AS total_orders,
			COALESCE(SUM(total_amount), 0) AS total_revenue,
			COUNT(*) FILTER (WHERE created_at >= ?) AS orders_today,
			COUNT(*) FILTER (WHERE status IN ?) AS active_orders`,
			todayStart, models.ActiveOrderStatuses).
		Where("status <> ?", models.OrderCancelled).
		Scopes(rangeScope("created_at", from, to)).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("order totals: %w", err)
	}
	return &out, nil
}

func (s *gormStore) TopRecipes(ctx context.Context, from, to *time.Time, limit int) ([]RecipeSales, error) {
	var out []RecipeSales
	err := s.db.WithContext(ctx).Table("order_items oi").
		Select(`oi.recipe_id, r.name, r.category,
			SUM(oi.quantity) AS units_sold,
			SUM(oi.quantity * oi.unit_price) AS revenue,
			COUNT(DISTINCT oi.order_id) AS order_count`).
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("JOIN recipes r ON r.id = oi.recipe_id").
		Where("o.status <> ?", models.OrderCancelled).
		Scopes(rangeScope("o.created_at", from, to)).
		Group("oi.recipe_id, r.name, r.category").
		Order("units_sold DESC, revenue DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("top recipes: %w", err)
	}
	return out, nil
}
