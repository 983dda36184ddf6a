package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EntityIngredient       = "ingredient"
	EntityRecipe           = "recipe"
	EntityTable            = "table"
	EntityOrder            = "order"
	EntityPayment          = "payment"
	EntityStockTransaction = "stock_transaction"
)

type LogOptions struct {
	Actor       auth.Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Writer is what domain services use to record their writes.
type Writer interface {
	Write(ctx context.Context, opts LogOptions)
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Write records opts. A failed audit write is logged and does not undo the
// change it describes.
func (s *Service) Write(ctx context.Context, opts LogOptions) {
	entry := models.AuditLog{
		UserID:      opts.Actor.UserID,
		UserName:    opts.Actor.Name,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.log.Error("write audit log",
			zap.String("entity", opts.EntityType), zap.Uint("id", opts.EntityID), zap.Error(err))
	}
}

// toJSON renders v for a jsonb column; Postgres wants "null", not "".
func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

type Filter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	From, To   *time.Time
	Limit      int
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var logs []models.AuditLog
	if err := q.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

// Undo reverts the change recorded by logID. Only ingredient and table
// changes can be undone; other entities carry ledger or payment
// consequences that a plain row restore would break.
func (s *Service) Undo(ctx context.Context, logID uint, actor auth.Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		err := tx.First(&entry, "id = ?", logID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("Audit log not found")
		}
		if err != nil {
			return fmt.Errorf("load audit log: %w", err)
		}
		if entry.IsUndone {
			return apperr.Conflict("This change has already been undone")
		}
		if entry.Action == models.AuditActionUndo {
			return apperr.Validation("An undo cannot be undone")
		}

		var target undoable
		switch entry.EntityType {
		case EntityIngredient:
			target = ingredientTarget{}
		case EntityTable:
			target = tableTarget{}
		default:
			return apperr.Validation("Changes to %s cannot be undone", entry.EntityType)
		}

		switch entry.Action {
		case models.AuditActionCreate:
			err = target.delete(tx, entry.EntityID)
		case models.AuditActionUpdate:
			err = target.restore(tx, entry.EntityID, entry.BeforeData)
		case models.AuditActionDelete:
			err = target.recreate(tx, entry.BeforeData)
		default:
			return apperr.Validation("This change cannot be undone")
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&entry).Updates(map[string]any{
			"is_undone": true,
			"undone_by": actor.UserID,
			"undone_at": now,
		}).Error; err != nil {
			return fmt.Errorf("mark audit log undone: %w", err)
		}

		undo := models.AuditLog{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: "Undone: " + entry.Description,
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undo).Error; err != nil {
			return fmt.Errorf("write undo log: %w", err)
		}
		return nil
	})
}
