package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"go.uber.org/zap"
)

// Units and categories offered by the ingredient form. Stored values are
// free text; these only seed the pickers.
var (
	DefaultUnits      = []string{"kg", "g", "l", "ml", "pcs", "dozen", "packet", "bottle", "can", "box"}
	DefaultCategories = []string{"Vegetables", "Fruits", "Dairy", "Meat", "Seafood", "Grains", "Spices", "Oils", "Beverages", "Bakery", "Packaging", "Other"}
)

type IngredientInput struct {
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Cost         float64 `json:"cost"`
	Category     string  `json:"category"`
	MinimumStock float64 `json:"minimum_stock"`
	VendorName   string  `json:"vendor_name"`
	VendorPhone  string  `json:"vendor_phone"`
}

func (in *IngredientInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	in.Category = strings.TrimSpace(in.Category)
	in.VendorName = strings.TrimSpace(in.VendorName)
	in.VendorPhone = strings.TrimSpace(in.VendorPhone)
	switch {
	case in.Name == "" || NormalizeName(in.Name) == "":
		return apperr.Validation("Name is required")
	case in.Unit == "":
		return apperr.Validation("Unit is required")
	case in.Category == "":
		return apperr.Validation("Category is required")
	case in.Cost < 0:
		return apperr.Validation("Cost cannot be negative")
	case in.MinimumStock < 0:
		return apperr.Validation("Minimum stock cannot be negative")
	}
	return nil
}

func (in IngredientInput) apply(ing *models.Ingredient) {
	ing.Name = in.Name
	ing.NameKey = NormalizeName(in.Name)
	ing.Unit = in.Unit
	ing.Cost = in.Cost
	ing.Category = in.Category
	ing.MinimumStock = in.MinimumStock
	ing.VendorName = in.VendorName
	ing.VendorPhone = in.VendorPhone
}

type IngredientService struct {
	store IngredientStore
	pub   realtime.Publisher
	audit audit.Writer
	log   *zap.Logger
}

func NewIngredientService(store IngredientStore, pub realtime.Publisher, aw audit.Writer, log *zap.Logger) *IngredientService {
	return &IngredientService{store: store, pub: pub, audit: aw, log: log}
}

func (s *IngredientService) List(ctx context.Context, f IngredientFilter) ([]models.Ingredient, int64, error) {
	return s.store.List(ctx, f)
}

func (s *IngredientService) Get(ctx context.Context, id uint) (*models.Ingredient, error) {
	ing, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("Ingredient not found")
	}
	return ing, err
}

func (s *IngredientService) Create(ctx context.Context, actor auth.Actor, in IngredientInput) (*models.Ingredient, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.Name, 0); err != nil {
		return nil, err
	}

	ing := &models.Ingredient{}
	in.apply(ing)
	if err := s.store.Create(ctx, ing); err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableIngredients, realtime.Insert, nil, ing))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityIngredient,
		EntityID:    ing.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Ingredient %s created", ing.Name),
		After:       ing,
	})
	return ing, nil
}

func (s *IngredientService) Update(ctx context.Context, actor auth.Actor, id uint, in IngredientInput) (*models.Ingredient, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	ing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in.Name, id); err != nil {
		return nil, err
	}

	before := *ing
	in.apply(ing)
	if err := s.store.Update(ctx, ing); err != nil {
		return nil, err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableIngredients, realtime.Update, before, ing))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityIngredient,
		EntityID:    ing.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("Ingredient %s updated", ing.Name),
		Before:      before,
		After:       ing,
	})
	return ing, nil
}

// Delete removes an ingredient no recipe uses.
func (s *IngredientService) Delete(ctx context.Context, actor auth.Actor, id uint) error {
	ing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.store.CountRecipeRefs(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperr.Conflict("Ingredient in use: %s is used by %d recipe(s)", ing.Name, refs)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Ingredient not found")
		}
		return err
	}

	s.pub.Publish(realtime.NewEvent(realtime.TableIngredients, realtime.Delete, ing, nil))
	s.audit.Write(ctx, audit.LogOptions{
		Actor:       actor,
		EntityType:  audit.EntityIngredient,
		EntityID:    id,
		Action:      models.AuditActionDelete,
		Description: fmt.Sprintf("Ingredient %s deleted", ing.Name),
		Before:      ing,
	})
	return nil
}

func (s *IngredientService) ensureUnique(ctx context.Context, name string, selfID uint) error {
	existing, err := s.store.FindByKey(ctx, NormalizeName(name))
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return apperr.Conflict("An ingredient named %q already exists", existing.Name)
	}
	return nil
}

type Catalogue struct {
	Units      []string `json:"units"`
	Categories []string `json:"categories"`
}

// Catalogue merges the default pickers with values already in use.
func (s *IngredientService) Catalogue(ctx context.Context) (*Catalogue, error) {
	units, err := s.store.Distinct(ctx, "unit")
	if err != nil {
		return nil, err
	}
	cats, err := s.store.Distinct(ctx, "category")
	if err != nil {
		return nil, err
	}
	return &Catalogue{
		Units:      mergeUnique(DefaultUnits, units),
		Categories: mergeUnique(DefaultCategories, cats),
	}, nil
}

func mergeUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			k := strings.ToLower(v)
			if v == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, v)
		}
	}
	return out
}

type ImportRowResult struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Status string `json:"status"` // created | skipped | failed
	Error  string `json:"error,omitempty"`
}

type ImportResult struct {
	Created int               `json:"created"`
	Skipped int               `json:"skipped"`
	Failed  int               `json:"failed"`
	Rows    []ImportRowResult `json:"rows"`
}

// Import creates each parsed row on its own. Names that already exist, in
// the database or earlier in the sheet, are skipped.
func (s *IngredientService) Import(ctx context.Context, actor auth.Actor, rows []ImportRow) ImportResult {
	var res ImportResult
	for _, r := range rows {
		out := ImportRowResult{Row: r.Row, Name: r.Input.Name}
		switch {
		case r.Err != "":
			out.Status, out.Error = "failed", r.Err
			res.Failed++
		default:
			_, err := s.Create(ctx, actor, r.Input)
			switch {
			case err == nil:
				out.Status = "created"
				res.Created++
			case apperr.IsKind(err, apperr.KindConflict):
				out.Status, out.Error = "skipped", err.Error()
				res.Skipped++
			default:
				msg := err.Error()
				if _, ok := apperr.As(err); !ok {
					s.log.Error("import ingredient row", zap.Int("row", r.Row), zap.Error(err))
					msg = "Failed to save ingredient"
				}
				out.Status, out.Error = "failed", msg
				res.Failed++
			}
		}
		res.Rows = append(res.Rows, out)
	}
	return res
}
