package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/payments"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrItemNotFound = errors.New("order item not found")
	// ErrStale means the row changed between read and write.
	ErrStale = errors.New("order changed concurrently")
)

// orderNumberLock serialises order number assignment across instances.
const orderNumberLock = 7300101

type Filter struct {
	Status        models.OrderStatus
	OrderType     models.OrderType
	PaymentStatus models.PaymentStatus
	CreatedBy     uint
	From, To      *time.Time
	Search        string
	Page          httpx.Page
	All           bool
}

// ActiveFilter selects orders for the kitchen, table and delivery screens.
type ActiveFilter struct {
	Statuses []models.OrderStatus
	Types    []models.OrderType
	TableID  *uint
	// OldestFirst orders by creation time ascending (kitchen queue).
	OldestFirst bool
}

type StatusStats struct {
	TotalOrders     int64   `json:"total_orders"`
	PendingOrders   int64   `json:"pending_orders"`
	CookingOrders   int64   `json:"cooking_orders"`
	ReadyOrders     int64   `json:"ready_orders"`
	ServedOrders    int64   `json:"served_orders"`
	CancelledOrders int64   `json:"cancelled_orders"`
	TotalRevenue    float64 `json:"total_revenue"`
}

type TypeStats struct {
	OrderType    models.OrderType `json:"order_type"`
	OrderCount   int64            `json:"order_count"`
	TotalRevenue float64          `json:"total_revenue"`
	AvgOrder     float64          `json:"avg_order_value"`
}

type Store interface {
	// Create numbers o and inserts it with its items.
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, f Filter) ([]models.Order, int64, error)
	Active(ctx context.Context, f ActiveFilter) ([]models.Order, error)
	// AddItems inserts items and recomputes the order total and payment
	// status from the full item set.
	AddItems(ctx context.Context, orderID uint, items []models.OrderItem) error
	// SetStatus moves the order from -> to; ErrStale when it is no longer in from.
	SetStatus(ctx context.Context, id uint, from, to models.OrderStatus) error
	GetItem(ctx context.Context, itemID uint) (*models.OrderItem, error)
	SetItemStatus(ctx context.Context, itemID uint, from, to models.ItemStatus) error
	ReadyItems(ctx context.Context) ([]models.OrderItem, error)
	StatsByStatus(ctx context.Context) (*StatusStats, error)
	StatsByType(ctx context.Context) ([]TypeStats, error)
	Recipes(ctx context.Context, ids []uint) (map[uint]models.Recipe, error)
	Table(ctx context.Context, id uint) (*models.Table, error)
}

type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

func withDetails(q *gorm.DB) *gorm.DB {
	return q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Recipe").
		Preload("Table").
		Preload("CreatedByProfile")
}

// FormatOrderNumber renders the n-th order of day, e.g. ORD-20250331-0007.
func FormatOrderNumber(day time.Time, n int64) string {
	return fmt.Sprintf("ORD-%s-%04d", day.Format("20060102"), n)
}

func (s *gormStore) Create(ctx context.Context, o *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", orderNumberLock).Error; err != nil {
			return fmt.Errorf("lock order numbers: %w", err)
		}
		now := s.now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		var today int64
		if err := tx.Model(&models.Order{}).Where("created_at >= ?", dayStart).Count(&today).Error; err != nil {
			return fmt.Errorf("count today's orders: %w", err)
		}
		o.OrderNumber = FormatOrderNumber(now, today+1)
		if err := tx.Omit("Items.Recipe", "Table", "CreatedByProfile").Create(o).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
}

func (s *gormStore) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := withDetails(s.db.WithContext(ctx)).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Payments.Splits").
		First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &o, nil
}

func (s *gormStore) List(ctx context.Context, f Filter) ([]models.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OrderType != "" {
		q = q.Where("order_type = ?", f.OrderType)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.CreatedBy > 0 {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("order_number ILIKE ? OR customer_name ILIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	q = withDetails(q).Preload("Payments").Order("created_at DESC").Order("id DESC")
	if !f.All {
		q = q.Offset(f.Page.Offset()).Limit(f.Page.Size)
	}
	var out []models.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return out, total, nil
}

func (s *gormStore) Active(ctx context.Context, f ActiveFilter) ([]models.Order, error) {
	q := withDetails(s.db.WithContext(ctx).Model(&models.Order{}))
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.Types) > 0 {
		q = q.Where("order_type IN ?", f.Types)
	}
	if f.TableID != nil {
		q = q.Where("table_id = ?", *f.TableID)
	}
	if f.OldestFirst {
		q = q.Order("created_at ASC").Order("id ASC")
	} else {
		q = q.Order("created_at DESC").Order("id DESC")
	}
	var out []models.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	return out, nil
}

func (s *gormStore) AddItems(ctx context.Context, orderID uint, items []models.OrderItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		for i := range items {
			items[i].OrderID = orderID
		}
		if err := tx.Omit("Recipe", "Order").Create(&items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		var total float64
		if err := tx.Model(&models.OrderItem{}).Where("order_id = ?", orderID).
			Select("COALESCE(SUM(quantity * unit_price), 0)").Scan(&total).Error; err != nil {
			return fmt.Errorf("sum order items: %w", err)
		}
		return tx.Model(&o).Updates(map[string]any{
			"total_amount":   total,
			"payment_status": payments.DeriveStatus(o.PaidAmount, total),
		}).Error
	})
}

func (s *gormStore) SetStatus(ctx context.Context, id uint, from, to models.OrderStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("update order %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

func (s *gormStore) GetItem(ctx context.Context, itemID uint) (*models.OrderItem, error) {
	var it models.OrderItem
	err := s.db.WithContext(ctx).Preload("Order").Preload("Recipe").First(&it, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order item %d: %w", itemID, err)
	}
	return &it, nil
}

func (s *gormStore) SetItemStatus(ctx context.Context, itemID uint, from, to models.ItemStatus) error {
	res := s.db.WithContext(ctx).Model(&models.OrderItem{}).
		Where("id = ? AND item_status = ?", itemID, from).
		Update("item_status", to)
	if res.Error != nil {
		return fmt.Errorf("update item %d status: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

func (s *gormStore) ReadyItems(ctx context.Context) ([]models.OrderItem, error) {
	var out []models.OrderItem
	err := s.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.item_status = ?", models.ItemReady).
		Where("orders.status IN ?", models.ActiveOrderStatuses).
		Preload("Order.Table").
		Preload("Recipe").
		Order("order_items.updated_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list ready items: %w", err)
	}
	return out, nil
}

func (s *gormStore) StatsByStatus(ctx context.Context) (*StatusStats, error) {
	var st StatusStats
	err := s.db.WithContext(ctx).Model(&models.Order{}).Select(`
		COUNT(*) AS total_orders,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending_orders,
		COUNT(*) FILTER (WHERE status = 'cooking') AS cooking_orders,
		COUNT(*) FILTER (WHERE status = 'ready') AS ready_orders,
		COUNT(*) FILTER (WHERE status = 'served') AS served_orders,
		COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled_orders,
		COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled'), 0) AS total_revenue`).
		Scan(&st).Error
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return &st, nil
}

func (s *gormStore) StatsByType(ctx context.Context) ([]TypeStats, error) {
	var out []TypeStats
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select(`order_type,
			COUNT(*) AS order_count,
			COALESCE(SUM(total_amount), 0) AS total_revenue,
			COALESCE(AVG(total_amount), 0) AS avg_order`).
		Where("status <> ?", models.OrderCancelled).
		Group("order_type").
		Order("order_type").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("order stats by type: %w", err)
	}
	return out, nil
}

func (s *gormStore) Recipes(ctx context.Context, ids []uint) (map[uint]models.Recipe, error) {
	out := make(map[uint]models.Recipe, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Recipe
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}
	for _, r := range list {
		out[r.ID] = r
	}
	return out, nil
}

func (s *gormStore) Table(ctx context.Context, id uint) (*models.Table, error) {
	var t models.Table
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get table %d: %w", id, err)
	}
	return &t, nil
}
