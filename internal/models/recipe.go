package models

import "time"

type Recipe struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:150;not null" json:"name"`
	NameKey  string `gorm:"size:150;not null;index" json:"-"`
	Category string `gorm:"size:100;not null;index" json:"category"`
	SKU      string `gorm:"column:sku;size:30;uniqueIndex" json:"sku"`

	SellingPrice float64 `gorm:"not null;default:0" json:"selling_price"`
	Sales        float64 `gorm:"not null;default:0" json:"sales"` // manually entered unit count
	Overhead     float64 `gorm:"not null" json:"overhead"`

	// Cost snapshot taken on save; responses always carry freshly computed metrics.
	TotalCost    float64 `gorm:"not null;default:0" json:"total_cost"`
	ProfitMargin float64 `gorm:"not null;default:0" json:"profit_margin"`
	MarkupFactor float64 `gorm:"not null;default:0" json:"markup_factor"`

	PreparationSteps    string `gorm:"type:text" json:"preparation_steps"`
	CookingMethod       string `gorm:"type:text" json:"cooking_method"`
	PlatingInstructions string `gorm:"type:text" json:"plating_instructions"`
	ChefsNotes          string `gorm:"type:text" json:"chefs_notes"`

	IsProductionRecipe   bool `gorm:"not null" json:"is_production_recipe"`
	PrintMenuReady       bool `gorm:"not null;default:false" json:"print_menu_ready"`
	QRMenuReady          bool `gorm:"column:qr_menu_ready;not null;default:false" json:"qr_menu_ready"`
	WebsiteMenuReady     bool `gorm:"not null;default:false" json:"website_menu_ready"`
	AvailableForDelivery bool `gorm:"not null;default:false" json:"available_for_delivery"`

	ImageURL                string `gorm:"size:500" json:"image_url"`
	DeliveryImageURL        string `gorm:"size:500" json:"delivery_image_url"`
	SpecialInstructionImage string `gorm:"size:500" json:"special_instruction_image"`

	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE" json:"recipe_ingredients,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImageURLs returns the stored object URLs, skipping empty ones.
func (r *Recipe) ImageURLs() []string {
	var urls []string
	for _, u := range []string{r.ImageURL, r.DeliveryImageURL, r.SpecialInstructionImage} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

type RecipeIngredient struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RecipeID     uint        `gorm:"not null;index" json:"recipe_id"`
	IngredientID uint        `gorm:"not null;index" json:"ingredient_id"`
	Ingredient   *Ingredient `gorm:"constraint:OnDelete:RESTRICT" json:"ingredient,omitempty"`
	Quantity     float64     `gorm:"not null" json:"quantity"`
}

// SkuCounter holds the last SKU number issued per category prefix.
type SkuCounter struct {
	Prefix    string `gorm:"primaryKey;size:10"`
	LastValue int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
