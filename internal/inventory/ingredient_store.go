package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

type IngredientFilter struct {
	Category string
	Search   string
	Sort     string // name | cost | category | created_at
	Desc     bool
	Page     httpx.Page
	// All ignores Page, for exports.
	All bool
}

type IngredientStore interface {
	List(ctx context.Context, f IngredientFilter) ([]models.Ingredient, int64, error)
	Get(ctx context.Context, id uint) (*models.Ingredient, error)
	// FindByKey returns nil, nil when no ingredient has key.
	FindByKey(ctx context.Context, key string) (*models.Ingredient, error)
	Create(ctx context.Context, ing *models.Ingredient) error
	Update(ctx context.Context, ing *models.Ingredient) error
	Delete(ctx context.Context, id uint) error
	CountRecipeRefs(ctx context.Context, id uint) (int64, error)
	Distinct(ctx context.Context, column string) ([]string, error)
}

type gormIngredientStore struct {
	db *gorm.DB
}

func NewIngredientStore(db *gorm.DB) IngredientStore {
	return &gormIngredientStore{db: db}
}

var ingredientSorts = map[string]string{
	"name":       "name",
	"cost":       "cost",
	"category":   "category",
	"created_at": "created_at",
}

func (s *gormIngredientStore) List(ctx context.Context, f IngredientFilter) ([]models.Ingredient, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Ingredient{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name ILIKE ? OR vendor_name ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count ingredients: %w", err)
	}

	col, ok := ingredientSorts[f.Sort]
	if !ok {
		col = "name"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	q = q.Order(col + " " + dir).Order("id")
	if !f.All {
		q = q.Offset(f.Page.Offset()).Limit(f.Page.Size)
	}

	var items []models.Ingredient
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list ingredients: %w", err)
	}
	return items, total, nil
}

func (s *gormIngredientStore) Get(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.WithContext(ctx).First(&ing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingredient %d: %w", id, err)
	}
	return &ing, nil
}

func (s *gormIngredientStore) FindByKey(ctx context.Context, key string) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.WithContext(ctx).Where("name_key = ?", key).First(&ing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ingredient by name: %w", err)
	}
	return &ing, nil
}

func (s *gormIngredientStore) Create(ctx context.Context, ing *models.Ingredient) error {
	if err := s.db.WithContext(ctx).Create(ing).Error; err != nil {
		return fmt.Errorf("create ingredient: %w", err)
	}
	return nil
}

func (s *gormIngredientStore) Update(ctx context.Context, ing *models.Ingredient) error {
	if err := s.db.WithContext(ctx).Save(ing).Error; err != nil {
		return fmt.Errorf("update ingredient %d: %w", ing.ID, err)
	}
	return nil
}

func (s *gormIngredientStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Ingredient{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete ingredient %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormIngredientStore) CountRecipeRefs(ctx context.Context, id uint) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.RecipeIngredient{}).
		Where("ingredient_id = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count recipe references: %w", err)
	}
	return n, nil
}

// Distinct lists the non-empty values of column ("category" or "unit").
func (s *gormIngredientStore) Distinct(ctx context.Context, column string) ([]string, error) {
	if column != "category" && column != "unit" {
		return nil, fmt.Errorf("unsupported column %q", column)
	}
	var out []string
	if err := s.db.WithContext(ctx).Model(&models.Ingredient{}).
		Where(column+" <> ''").Distinct(column).Order(column).Pluck(column, &out).Error; err != nil {
		return nil, fmt.Errorf("list %s values: %w", column, err)
	}
	return out, nil
}
