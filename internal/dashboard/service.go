package dashboard

import (
	"context"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTopRecipes = 10
	maxTopRecipes     = 100
)

type Overview struct {
	TotalOrders       int64   `json:"total_orders"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	OrdersToday       int64   `json:"orders_today"`
	ActiveOrders      int64   `json:"active_orders"`
}

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) Overview(ctx context.Context, from, to *time.Time) (*Overview, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	t, err := s.store.OrderTotals(ctx, from, to, today)
	if err != nil {
		return nil, err
	}
	revenue := decimal.NewFromFloat(t.TotalRevenue)
	ov := &Overview{
		TotalOrders:  t.TotalOrders,
		TotalRevenue: revenue.Round(2).InexactFloat64(),
		OrdersToday:  t.OrdersToday,
		ActiveOrders: t.ActiveOrders,
	}
	if t.TotalOrders > 0 {
		ov.AverageOrderValue = revenue.Div(decimal.NewFromInt(t.TotalOrders)).Round(2).InexactFloat64()
	}
	return ov, nil
}

func (s *Service) SalesChart(ctx context.Context, period Period, count int) (*Chart, error) {
	w, err := NewWindow(period, count, s.now())
	if err != nil {
		return nil, err
	}
	rows, err := s.store.MethodTotals(ctx, w.Period, w.Start, w.End)
	if err != nil {
		return nil, err
	}
	chart := BuildChart(w, rows)
	return &chart, nil
}

func (s *Service) TopRecipes(ctx context.Context, from, to *time.Time, limit int) ([]RecipeSales, error) {
	if limit <= 0 {
		limit = defaultTopRecipes
	}
	if limit > maxTopRecipes {
		return nil, apperr.Validation("limit must be at most %d", maxTopRecipes)
	}
	list, err := s.store.TopRecipes(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []RecipeSales{}
	}
	return list, nil
}
