package tables

import (
	"context"
	"errors"
	"fmt"

	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("table not found")

type Store interface {
	List(ctx context.Context, includeInactive bool) ([]models.Table, error)
	Get(ctx context.Context, id uint) (*models.Table, error)
	FindByNumber(ctx context.Context, number string) (*models.Table, error)
	Create(ctx context.Context, t *models.Table) error
	Update(ctx context.Context, t *models.Table) error
	// ActiveOrders returns open dine-in orders with their items, newest first.
	ActiveOrders(ctx context.Context) ([]models.Order, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) List(ctx context.Context, includeInactive bool) ([]models.Table, error) {
	q := s.db.WithContext(ctx)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var out []models.Table
	if err := q.Order("table_number").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return out, nil
}

func (s *gormStore) Get(ctx context.Context, id uint) (*models.Table, error) {
	var t models.Table
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table %d: %w", id, err)
	}
	return &t, nil
}

func (s *gormStore) FindByNumber(ctx context.Context, number string) (*models.Table, error) {
	var t models.Table
	err := s.db.WithContext(ctx).Where("table_number = ?", number).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find table %q: %w", number, err)
	}
	return &t, nil
}

func (s *gormStore) Create(ctx context.Context, t *models.Table) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func (s *gormStore) Update(ctx context.Context, t *models.Table) error {
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("update table %d: %w", t.ID, err)
	}
	return nil
}

func (s *gormStore) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Recipe").
		Where("status IN ? AND table_id IS NOT NULL", models.ActiveOrderStatuses).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list active table orders: %w", err)
	}
	return out, nil
}
