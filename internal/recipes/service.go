package recipes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/costing"
	"github.com/bhavnindersingh/RecipeManager/internal/inventory"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/bhavnindersingh/RecipeManager/internal/storage"

	"go.uber.org/zap"
)

type LineInput struct {
	IngredientID uint    `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

type Input struct {
	Name         string      `json:"name"`
	Category     string      `json:"category"`
	SellingPrice float64     `json:"selling_price"`
	Sales        float64     `json:"sales"`
	Overhead     *float64    `json:"overhead"`
	Ingredients  []LineInput `json:"ingredients"`

	PreparationSteps    string `json:"preparation_steps"`
	CookingMethod       string `json:"cooking_method"`
	PlatingInstructions string `json:"plating_instructions"`
	ChefsNotes          string `json:"chefs_notes"`

	IsProductionRecipe   *bool `json:"is_production_recipe"`
	PrintMenuReady       bool  `json:"print_menu_ready"`
	QRMenuReady          bool  `json:"qr_menu_ready"`
	WebsiteMenuReady     bool  `json:"website_menu_ready"`
	AvailableForDelivery bool  `json:"available_for_delivery"`
}

// View is a recipe with metrics derived at read time.
type View struct {
	models.Recipe
	Metrics costing.Metrics `json:"metrics"`
	Health  costing.Health  `json:"health"`
	Sales   SalesStats      `json:"sales_data"`
}

type Service struct {
	store   Store
	images  storage.Store
	pub     realtime.Publisher
	audit   audit.Writer
	log     *zap.Logger
	nowFunc func() time.Time
}

func NewService(store Store, images storage.Store, pub realtime.Publisher, aw audit.Writer, log *zap.Logger) *Service {
	return &Service{store: store, images: images, pub: pub, audit: aw, log: log, nowFunc: time.Now}
}

func (s *Service) validate(ctx context.Context, in *Input) (map[uint]models.Ingredient, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.Name == "" || inventory.NormalizeName(in.Name) == "":
		return nil, apperr.Validation("Recipe name is required")
	case in.Category == "":
		return nil, apperr.Validation("Category is required")
	case in.SellingPrice < 0:
		return nil, apperr.Validation("Selling price cannot be negative")
	case in.Sales < 0:
		return nil, apperr.Validation("Sales cannot be negative")
	case in.Overhead != nil && *in.Overhead < 0:
		return nil, apperr.Validation("Overhead cannot be negative")
	case len(in.Ingredients) == 0:
		return nil, apperr.Validation("At least one ingredient is required")
	}

	ids := make([]uint, 0, len(in.Ingredients))
	seen := make(map[uint]bool, len(in.Ingredients))
	for _, l := range in.Ingredients {
		if !(l.Quantity > 0) {
			return nil, apperr.Validation("Ingredient quantities must be greater than zero")
		}
		if seen[l.IngredientID] {
			return nil, apperr.Validation("Ingredient %d is listed twice", l.IngredientID)
		}
		seen[l.IngredientID] = true
		ids = append(ids, l.IngredientID)
	}
	found, err := s.store.Ingredients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, apperr.Validation("Ingredient %d does not exist", id)
		}
	}
	return found, nil
}

// apply copies in onto r. Omitted overhead and production flag keep r's values.
func (in Input) apply(r *models.Recipe, ingredients map[uint]models.Ingredient) {
	r.Name = in.Name
	r.NameKey = inventory.NormalizeName(in.Name)
	r.Category = in.Category
	r.SellingPrice = in.SellingPrice
	r.Sales = in.Sales
	if in.Overhead != nil {
		r.Overhead = *in.Overhead
	}
	r.PreparationSteps = in.PreparationSteps
	r.CookingMethod = in.CookingMethod
	r.PlatingInstructions = in.PlatingInstructions
	r.ChefsNotes = in.ChefsNotes
	if in.IsProductionRecipe != nil {
		r.IsProductionRecipe = *in.IsProductionRecipe
	}
	r.PrintMenuReady = in.PrintMenuReady
	r.QRMenuReady = in.QRMenuReady
	r.WebsiteMenuReady = in.WebsiteMenuReady
	r.AvailableForDelivery = in.AvailableForDelivery

	r.Ingredients = r.Ingredients[:0]
	lines := make([]costing.Line, 0, len(in.Ingredients))
	for _, l := range in.Ingredients {
		r.Ingredients = append(r.Ingredients, models.RecipeIngredient{IngredientID: l.IngredientID, Quantity: l.Quantity})
		lines = append(lines, costing.Line{Quantity: l.Quantity, CostPerUnit: ingredients[l.IngredientID].Cost})
	}

	// Snapshot for list screens and exports; reads recompute.
	m := costing.Calculate(costing.Input{Ingredients: lines, Overhead: r.Overhead, SellingPrice: r.SellingPrice}, time.Now()).Rounded()
	r.TotalCost = m.TotalCost
	r.ProfitMargin = m.ProfitMargin
	r.MarkupFactor = m.MarkupFactor
}

// Create validates, assigns a SKU from the category counter and stores the
// recipe. Names must be unique after normalisation.
func (s *Service) Create(ctx context.Context, actor auth.Actor, in Input) (*View, error) {
	ings, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindByKey(ctx, inventory.NormalizeName(in.Name))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("A recipe named %q already exists", existing.Name)
	}

	r := &models.Recipe{Overhead: costing.DefaultOverhead, IsProductionRecipe: true}
	in.apply(r, ings)
	if err := s.store.Create(ctx, r, SKUPrefix(r.Category)); err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableRecipes, realtime.Insert, nil, r))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityRecipe,
		EntityID:    r.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Recipe %s (%s) created", r.Name, r.SKU),
		After:       r,
	})
	return s.Get(ctx, r.ID)
}

// Update replaces the recipe's fields and ingredient list. The SKU is kept
// even when the category changes.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id uint, in Input) (*View, error) {
	ings, err := s.validate(ctx, &in)
	if err != nil {
		return nil, err
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *r
	before.Ingredients = append([]models.RecipeIngredient(nil), r.Ingredients...)

	in.apply(r, ings)
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableRecipes, realtime.Update, &before, r))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityRecipe,
		EntityID:    r.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("Recipe %s updated", r.Name),
		Before:      &before,
		After:       r,
	})
	return s.Get(ctx, id)
}

// Delete removes the recipe and then its stored images.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uint) error {
	r, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Recipe not found")
		}
		return err
	}
	if urls := r.ImageURLs(); len(urls) > 0 {
		if err := s.images.Remove(ctx, urls); err != nil {
			s.log.Warn("recipe images left behind", zap.Uint("recipe_id", id), zap.Error(err))
		}
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableRecipes, realtime.Delete, r, nil))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityRecipe,
		EntityID:    id,
		Action:      models.AuditActionDelete,
		Description: fmt.Sprintf("Recipe %s deleted", r.Name),
		Before:      r,
	})
	return nil
}

func (s *Service) load(ctx context.Context, id uint) (*models.Recipe, error) {
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Recipe not found")
	}
	return r, err
}

func (s *Service) Get(ctx context.Context, id uint) (*View, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	sales, err := s.store.Sales(ctx, []uint{id})
	if err != nil {
		return nil, err
	}
	v := s.view(*r, sales[id])
	return &v, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]View, int64, error) {
	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	sales := map[uint]SalesStats{}
	if len(ids) > 0 {
		if sales, err = s.store.Sales(ctx, ids); err != nil {
			return nil, 0, err
		}
	}
	out := make([]View, 0, len(list))
	for _, r := range list {
		out = append(out, s.view(r, sales[r.ID]))
	}
	return out, total, nil
}

// view derives metrics from current ingredient costs and POS history.
// Recipes with no POS history fall back to the manually entered sales count.
func (s *Service) view(r models.Recipe, sales SalesStats) View {
	lines := make([]costing.Line, 0, len(r.Ingredients))
	for _, ri := range r.Ingredients {
		cost := 0.0
		if ri.Ingredient != nil {
			cost = ri.Ingredient.Cost
		}
		lines = append(lines, costing.Line{Quantity: ri.Quantity, CostPerUnit: cost})
	}
	units := sales.UnitsSold
	if units == 0 {
		units = r.Sales
	}
	sales.RecipeID = r.ID
	m := costing.Calculate(costing.Input{
		Ingredients:  lines,
		Overhead:     r.Overhead,
		SellingPrice: r.SellingPrice,
		UnitsSold:    units,
		AvgSalePrice: sales.AvgSalePrice,
		FirstSoldAt:  sales.FirstSoldAt,
		LastSoldAt:   sales.LastSoldAt,
	}, s.nowFunc()).Rounded()
	return View{Recipe: r, Metrics: m, Health: costing.Classify(m), Sales: sales}
}

type SKUPreview struct {
	Prefix string `json:"prefix"`
	SKU    string `json:"sku"`
}

// PreviewSKU shows the SKU the next recipe in category would get. Creation
// may still hand out a later number if another recipe is saved first.
func (s *Service) PreviewSKU(ctx context.Context, category string) (*SKUPreview, error) {
	prefix := SKUPrefix(category)
	last, err := s.store.LastSKU(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return &SKUPreview{Prefix: prefix, SKU: FormatSKU(prefix, last+1)}, nil
}

// SalesData returns POS sales per recipe for every recipe sold at least once.
func (s *Service) SalesData(ctx context.Context) (map[uint]SalesStats, error) {
	return s.store.Sales(ctx, nil)
}

type ImageKind string

const (
	ImageMain        ImageKind = "image"
	ImageDelivery    ImageKind = "delivery"
	ImageInstruction ImageKind = "instruction"
)

func (k ImageKind) column() (string, bool) {
	switch k {
	case ImageMain:
		return "image_url", true
	case ImageDelivery:
		return "delivery_image_url", true
	case ImageInstruction:
		return "special_instruction_image", true
	}
	return "", false
}

func currentImage(r *models.Recipe, k ImageKind) string {
	switch k {
	case ImageDelivery:
		return r.DeliveryImageURL
	case ImageInstruction:
		return r.SpecialInstructionImage
	}
	return r.ImageURL
}

// SetImage uploads a new image of kind and replaces the old one.
func (s *Service) SetImage(ctx context.Context, id uint, kind ImageKind, filename, contentType string, size int64, body io.Reader) (*View, error) {
	col, ok := kind.column()
	if !ok {
		return nil, apperr.Validation("Unknown image kind %q", kind)
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.images.Upload(ctx, filename, contentType, size, body)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateImages(ctx, id, map[string]any{col: url}); err != nil {
		_ = s.images.Remove(ctx, []string{url})
		return nil, err
	}
	if old := currentImage(r, kind); old != "" {
		if err := s.images.Remove(ctx, []string{old}); err != nil {
			s.log.Warn("old recipe image left behind", zap.Uint("recipe_id", id), zap.Error(err))
		}
	}
	return s.Get(ctx, id)
}

// RemoveImage clears the image of kind and deletes the stored file.
func (s *Service) RemoveImage(ctx context.Context, id uint, kind ImageKind) (*View, error) {
	col, ok := kind.column()
	if !ok {
		return nil, apperr.Validation("Unknown image kind %q", kind)
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	old := currentImage(r, kind)
	if old == "" {
		return s.Get(ctx, id)
	}
	if err := s.store.UpdateImages(ctx, id, map[string]any{col: ""}); err != nil {
		return nil, err
	}
	if err := s.images.Remove(ctx, []string{old}); err != nil {
		s.log.Warn("recipe image left behind", zap.Uint("recipe_id", id), zap.Error(err))
	}
	return s.Get(ctx, id)
}
