package audit

import (
	"encoding/json"
	"fmt"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"gorm.io/gorm"
)

type undoable interface {
	delete(tx *gorm.DB, id uint) error
	restore(tx *gorm.DB, id uint, data string) error
	recreate(tx *gorm.DB, data string) error
}

type ingredientTarget struct{}

func (ingredientTarget) delete(tx *gorm.DB, id uint) error {
	var refs int64
	if err := tx.Model(&models.RecipeIngredient{}).Where("ingredient_id = ?", id).Count(&refs).Error; err != nil {
		return fmt.Errorf("count recipe references: %w", err)
	}
	if refs > 0 {
		return apperr.Conflict("Ingredient is used by %d recipe(s) and cannot be removed", refs)
	}
	return tx.Delete(&models.Ingredient{}, id).Error
}

func (ingredientTarget) restore(tx *gorm.DB, id uint, data string) error {
	var ing models.Ingredient
	if err := json.Unmarshal([]byte(data), &ing); err != nil {
		return fmt.Errorf("decode ingredient snapshot: %w", err)
	}
	return tx.Model(&models.Ingredient{}).Where("id = ?", id).Updates(map[string]any{
		"name":          ing.Name,
		"name_key":      ing.NameKey,
		"unit":          ing.Unit,
		"cost":          ing.Cost,
		"category":      ing.Category,
		"minimum_stock": ing.MinimumStock,
		"vendor_name":   ing.VendorName,
		"vendor_phone":  ing.VendorPhone,
	}).Error
}

func (ingredientTarget) recreate(tx *gorm.DB, data string) error {
	var ing models.Ingredient
	if err := json.Unmarshal([]byte(data), &ing); err != nil {
		return fmt.Errorf("decode ingredient snapshot: %w", err)
	}
	return tx.Create(&ing).Error
}

type tableTarget struct{}

func (tableTarget) delete(tx *gorm.DB, id uint) error {
	return tx.Model(&models.Table{}).Where("id = ?", id).Update("is_active", false).Error
}

func (tableTarget) restore(tx *gorm.DB, id uint, data string) error {
	var t models.Table
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return fmt.Errorf("decode table snapshot: %w", err)
	}
	return tx.Model(&models.Table{}).Where("id = ?", id).Updates(map[string]any{
		"table_number": t.TableNumber,
		"capacity":     t.Capacity,
		"section":      t.Section,
		"status":       t.Status,
		"is_active":    t.IsActive,
	}).Error
}

func (tableTarget) recreate(tx *gorm.DB, data string) error {
	var t models.Table
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return fmt.Errorf("decode table snapshot: %w", err)
	}
	return tx.Save(&t).Error
}
