package recipes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("recipe not found")

type Filter struct {
	Category   string
	Search     string
	Production *bool
	Page       httpx.Page
	All        bool
}

// SalesStats summarises POS sales of a recipe, cancelled orders excluded.
type SalesStats struct {
	RecipeID     uint       `json:"recipe_id"`
	UnitsSold    float64    `json:"units_sold"`
	Revenue      float64    `json:"revenue"`
	AvgSalePrice float64    `json:"avg_sale_price"`
	OrderCount   int64      `json:"order_count"`
	FirstSoldAt  *time.Time `json:"first_sold_at"`
	LastSoldAt   *time.Time `json:"last_sold_at"`
}

type Store interface {
	List(ctx context.Context, f Filter) ([]models.Recipe, int64, error)
	Get(ctx context.Context, id uint) (*models.Recipe, error)
	FindByKey(ctx context.Context, key string) (*models.Recipe, error)
	// Create assigns the next SKU for prefix and inserts r with its
	// ingredient links in one transaction.
	Create(ctx context.Context, r *models.Recipe, skuPrefix string) error
	// Update saves r and replaces its ingredient links.
	Update(ctx context.Context, r *models.Recipe) error
	UpdateImages(ctx context.Context, id uint, images map[string]any) error
	Delete(ctx context.Context, id uint) error
	LastSKU(ctx context.Context, prefix string) (int, error)
	Ingredients(ctx context.Context, ids []uint) (map[uint]models.Ingredient, error)
	Sales(ctx context.Context, recipeIDs []uint) (map[uint]SalesStats, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) List(ctx context.Context, f Filter) ([]models.Recipe, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Recipe{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name ILIKE ? OR sku ILIKE ?", like, like)
	}
	if f.Production != nil {
		q = q.Where("is_production_recipe = ?", *f.Production)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}
	q = q.Preload("Ingredients.Ingredient").Order("name").Order("id")
	if !f.All {
		q = q.Offset(f.Page.Offset()).Limit(f.Page.Size)
	}
	var out []models.Recipe
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	return out, total, nil
}

func (s *gormStore) Get(ctx context.Context, id uint) (*models.Recipe, error) {
	var r models.Recipe
	err := s.db.WithContext(ctx).Preload("Ingredients.Ingredient").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe %d: %w", id, err)
	}
	return &r, nil
}

func (s *gormStore) FindByKey(ctx context.Context, key string) (*models.Recipe, error) {
	var r models.Recipe
	err := s.db.WithContext(ctx).Where("name_key = ?", key).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe by name: %w", err)
	}
	return &r, nil
}

func (s *gormStore) Create(ctx context.Context, r *models.Recipe, skuPrefix string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := models.SkuCounter{Prefix: skuPrefix}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return fmt.Errorf("init sku counter: %w", err)
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&counter, "prefix = ?", skuPrefix).Error; err != nil {
			return fmt.Errorf("lock sku counter: %w", err)
		}
		counter.LastValue++
		if err := tx.Model(&counter).Update("last_value", counter.LastValue).Error; err != nil {
			return fmt.Errorf("advance sku counter: %w", err)
		}
		r.SKU = FormatSKU(skuPrefix, counter.LastValue)

		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("create recipe: %w", err)
		}
		return nil
	})
}

func (s *gormStore) Update(ctx context.Context, r *models.Recipe) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(r).Error; err != nil {
			return fmt.Errorf("save recipe %d: %w", r.ID, err)
		}
		if err := tx.Where("recipe_id = ?", r.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("clear recipe ingredients: %w", err)
		}
		for i := range r.Ingredients {
			r.Ingredients[i].ID = 0
			r.Ingredients[i].RecipeID = r.ID
		}
		if len(r.Ingredients) > 0 {
			if err := tx.Omit("Ingredient").Create(&r.Ingredients).Error; err != nil {
				return fmt.Errorf("insert recipe ingredients: %w", err)
			}
		}
		return nil
	})
}

func (s *gormStore) UpdateImages(ctx context.Context, id uint, images map[string]any) error {
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Where("id = ?", id).Updates(images).Error; err != nil {
		return fmt.Errorf("update recipe %d images: %w", id, err)
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("delete recipe ingredients: %w", err)
		}
		res := tx.Delete(&models.Recipe{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete recipe %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *gormStore) LastSKU(ctx context.Context, prefix string) (int, error) {
	var c models.SkuCounter
	err := s.db.WithContext(ctx).First(&c, "prefix = ?", prefix).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sku counter: %w", err)
	}
	return c.LastValue, nil
}

func (s *gormStore) Ingredients(ctx context.Context, ids []uint) (map[uint]models.Ingredient, error) {
	out := make(map[uint]models.Ingredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Ingredient
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	for _, i := range list {
		out[i.ID] = i
	}
	return out, nil
}

func (s *gormStore) Sales(ctx context.Context, recipeIDs []uint) (map[uint]SalesStats, error) {
	q := s.db.WithContext(ctx).Table("order_items oi").
		Select(`oi.recipe_id,
			SUM(oi.quantity) AS units_sold,
			SUM(oi.quantity * oi.unit_price) AS revenue,
			COUNT(DISTINCT oi.order_id) AS order_count,
			MIN(o.created_at) AS first_sold_at,
			MAX(o.created_at) AS last_sold_at`).
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.status <> ?", models.OrderCancelled).
		Group("oi.recipe_id")
	if len(recipeIDs) > 0 {
		q = q.Where("oi.recipe_id IN ?", recipeIDs)
	}
	var rows []SalesStats
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("aggregate recipe sales: %w", err)
	}
	out := make(map[uint]SalesStats, len(rows))
	for _, r := range rows {
		if r.UnitsSold > 0 {
			r.AvgSalePrice = r.Revenue / r.UnitsSold
		}
		out[r.RecipeID] = r
	}
	return out, nil
}
