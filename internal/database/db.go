package database

import (
	"fmt"

	"github.com/bhavnindersingh/RecipeManager/internal/config"
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to Postgres and brings the schema up to date.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	// ingredients.name_key arrives with a unique index, so existing rows need
	// a key before AutoMigrate can add it.
	if db.Migrator().HasTable(&models.Ingredient{}) && !db.Migrator().HasColumn(&models.Ingredient{}, "name_key") {
		log.Info("adding ingredients.name_key column")
		if err := db.Exec("ALTER TABLE ingredients ADD COLUMN name_key VARCHAR(150)").Error; err != nil {
			return fmt.Errorf("add ingredients.name_key: %w", err)
		}
		if err := backfillIngredientKeys(db, log); err != nil {
			return err
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.SkuCounter{},
		&models.Table{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.PaymentSplit{},
		&models.IngredientStock{},
		&models.StockTransaction{},
		&models.StockSettings{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// Recipes created before name_key existed.
	var missing []models.Recipe
	if err := db.Select("id", "name").Where("name_key = '' OR name_key IS NULL").Find(&missing).Error; err != nil {
		return fmt.Errorf("load recipes without name_key: %w", err)
	}
	for _, r := range missing {
		if err := db.Model(&models.Recipe{}).Where("id = ?", r.ID).
			Update("name_key", inventory.NormalizeName(r.Name)).Error; err != nil {
			return fmt.Errorf("backfill recipe %d name_key: %w", r.ID, err)
		}
	}
	if len(missing) > 0 {
		log.Info("backfilled recipe name keys", zap.Int("count", len(missing)))
	}
	return nil
}

// backfillIngredientKeys fills name_key for legacy rows. Rows whose key
// collides with an earlier one get the id appended so the unique index can
// be created; the duplicates stay visible for an admin to merge.
func backfillIngredientKeys(db *gorm.DB, log *zap.Logger) error {
	type row struct {
		ID   uint
		Name string
	}
	var rows []row
	if err := db.Raw("SELECT id, name FROM ingredients ORDER BY id").Scan(&rows).Error; err != nil {
		return fmt.Errorf("load ingredients: %w", err)
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		key := inventory.NormalizeName(r.Name)
		if seen[key] {
			log.Warn("duplicate ingredient name", zap.Uint("id", r.ID), zap.String("name", r.Name))
			key = fmt.Sprintf("%s%d", key, r.ID)
		}
		seen[key] = true
		if err := db.Exec("UPDATE ingredients SET name_key = ? WHERE id = ?", key, r.ID).Error; err != nil {
			return fmt.Errorf("backfill ingredient %d: %w", r.ID, err)
		}
	}
	return nil
}
