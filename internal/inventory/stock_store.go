package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockLevel is an ingredient joined with its running balance and settings.
type StockLevel struct {
	IngredientID    uint      `json:"ingredient_id"`
	Name            string    `json:"name"`
	Unit            string    `json:"unit"`
	Category        string    `json:"category"`
	CurrentQuantity float64   `json:"current_quantity"`
	MinimumQuantity float64   `json:"minimum_quantity"`
	UnitCostAvg     float64   `json:"unit_cost_avg"`
	ReorderQuantity float64   `json:"reorder_quantity"`
	StorageLocation string    `json:"storage_location"`
	LastUpdated     time.Time `json:"last_updated"`
}

const (
	StatusOK  = "ok"
	StatusLow = "low"
	StatusOut = "out"
)

func (l StockLevel) Status() string {
	switch {
	case l.CurrentQuantity <= 0:
		return StatusOut
	case l.CurrentQuantity < l.MinimumQuantity:
		return StatusLow
	}
	return StatusOK
}

func (l StockLevel) IsLow() bool { return l.CurrentQuantity < l.MinimumQuantity }

// TotalValue prices the positive balance at the average cost.
func (l StockLevel) TotalValue() float64 {
	if l.CurrentQuantity <= 0 {
		return 0
	}
	return l.CurrentQuantity * l.UnitCostAvg
}

type LevelFilter struct {
	IngredientID uint
	Category     string
	Search       string
	LowOnly      bool
}

type TxFilter struct {
	IngredientID uint
	Type         models.StockTransactionType
	From, To     *time.Time
	Limit        int
}

type StockStore interface {
	// Append writes tx and applies its delta to the balance atomically.
	Append(ctx context.Context, tx *models.StockTransaction) error
	Levels(ctx context.Context, f LevelFilter) ([]StockLevel, error)
	UpsertSettings(ctx context.Context, s *models.StockSettings) error
	Transactions(ctx context.Context, f TxFilter) ([]models.StockTransaction, error)
	CountTransactionsSince(ctx context.Context, since time.Time) (int64, error)
	IngredientExists(ctx context.Context, id uint) (bool, error)
}

type gormStockStore struct {
	db *gorm.DB
}

func NewStockStore(db *gorm.DB) StockStore {
	return &gormStockStore{db: db}
}

func (s *gormStockStore) Append(ctx context.Context, t *models.StockTransaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("insert stock transaction: %w", err)
		}

		stock := models.IngredientStock{IngredientID: t.IngredientID}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.IngredientStock{IngredientID: t.IngredientID}).
			FirstOrCreate(&stock).Error; err != nil {
			return fmt.Errorf("load stock row: %w", err)
		}

		updates := map[string]any{
			"current_quantity": gorm.Expr("current_quantity + ?", t.Quantity),
			"last_updated":     time.Now(),
		}
		if t.TransactionType == models.StockPurchase && t.UnitCost != nil {
			// Weighted average over the stock on hand; a negative balance
			// counts as empty.
			updates["unit_cost_avg"] = gorm.Expr(
				"(GREATEST(current_quantity, 0) * unit_cost_avg + ? * ?) / (GREATEST(current_quantity, 0) + ?)",
				t.Quantity, *t.UnitCost, t.Quantity)
		}
		if err := tx.Model(&models.IngredientStock{}).
			Where("ingredient_id = ?", t.IngredientID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("apply stock delta: %w", err)
		}
		return nil
	})
}

const levelsQuery = `
SELECT i.id AS ingredient_id, i.name, i.unit, i.category,
       COALESCE(s.current_quantity, 0) AS current_quantity,
       COALESCE(ss.min_stock_level, i.minimum_stock) AS minimum_quantity,
       COALESCE(NULLIF(s.unit_cost_avg, 0), i.cost) AS unit_cost_avg,
       COALESCE(ss.reorder_quantity, 0) AS reorder_quantity,
       COALESCE(ss.storage_location, '') AS storage_location,
       COALESCE(s.last_updated, i.updated_at) AS last_updated
FROM ingredients i
LEFT JOIN ingredient_stock s ON s.ingredient_id = i.id
LEFT JOIN stock_settings ss ON ss.ingredient_id = i.id`

func (s *gormStockStore) Levels(ctx context.Context, f LevelFilter) ([]StockLevel, error) {
	q := s.db.WithContext(ctx).Table("(?) AS levels", gorm.Expr(levelsQuery))
	if f.IngredientID > 0 {
		q = q.Where("ingredient_id = ?", f.IngredientID)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		q = q.Where("name ILIKE ?", "%"+f.Search+"%")
	}
	if f.LowOnly {
		q = q.Where("current_quantity < minimum_quantity")
	}
	var out []StockLevel
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	return out, nil
}

func (s *gormStockStore) UpsertSettings(ctx context.Context, st *models.StockSettings) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ingredient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"min_stock_level", "reorder_quantity", "storage_location", "notes", "updated_at"}),
	}).Create(st).Error
	if err != nil {
		return fmt.Errorf("save stock settings: %w", err)
	}
	return nil
}

func (s *gormStockStore) Transactions(ctx context.Context, f TxFilter) ([]models.StockTransaction, error) {
	q := s.db.WithContext(ctx).Preload("Ingredient")
	if f.IngredientID > 0 {
		q = q.Where("ingredient_id = ?", f.IngredientID)
	}
	if f.Type != "" {
		q = q.Where("transaction_type = ?", f.Type)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []models.StockTransaction
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stock transactions: %w", err)
	}
	return out, nil
}

func (s *gormStockStore) CountTransactionsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.StockTransaction{}).
		Where("created_at >= ?", since).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count stock transactions: %w", err)
	}
	return n, nil
}

func (s *gormStockStore) IngredientExists(ctx context.Context, id uint) (bool, error) {
	var ing models.Ingredient
	err := s.db.WithContext(ctx).Select("id").First(&ing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ingredient %d: %w", id, err)
	}
	return true, nil
}
