package recipes

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type fakePublisher struct{ events []realtime.Event }

func (p *fakePublisher) Publish(ev realtime.Event) { p.events = append(p.events, ev) }

type fakeAudit struct{ entries []audit.LogOptions }

func (a *fakeAudit) Write(_ context.Context, opts audit.LogOptions) { a.entries = append(a.entries, opts) }

type fakeImages struct {
	uploaded []string
	removed  []string
}

func (f *fakeImages) Upload(_ context.Context, filename, _ string, _ int64, r io.Reader) (string, error) {
	_, _ = io.ReadAll(r)
	url := "http://localhost:8080/recipe-images/" + filename
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeImages) Remove(_ context.Context, urls []string) error {
	f.removed = append(f.removed, urls...)
	return nil
}

type fakeStore struct {
	recipes     map[uint]*models.Recipe
	ingredients map[uint]models.Ingredient
	counters    map[string]int
	sales       map[uint]SalesStats
	next        uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recipes: map[uint]*models.Recipe{},
		ingredients: map[uint]models.Ingredient{
			1: {ID: 1, Name: "Paneer", Unit: "kg", Cost: 50},
			2: {ID: 2, Name: "Cream", Unit: "l", Cost: 30},
		},
		counters: map[string]int{},
		sales:    map[uint]SalesStats{},
	}
}

func (f *fakeStore) hydrate(r models.Recipe) *models.Recipe {
	links := make([]models.RecipeIngredient, len(r.Ingredients))
	for i, l := range r.Ingredients {
		ing := f.ingredients[l.IngredientID]
		l.Ingredient = &ing
		links[i] = l
	}
	r.Ingredients = links
	return &r
}

func (f *fakeStore) List(_ context.Context, _ Filter) ([]models.Recipe, int64, error) {
	var out []models.Recipe
	for id := uint(1); id <= f.next; id++ {
		if r, ok := f.recipes[id]; ok {
			out = append(out, *f.hydrate(*r))
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Get(_ context.Context, id uint) (*models.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.hydrate(*r), nil
}

func (f *fakeStore) FindByKey(_ context.Context, key string) (*models.Recipe, error) {
	for _, r := range f.recipes {
		if r.NameKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Create(_ context.Context, r *models.Recipe, prefix string) error {
	f.counters[prefix]++
	r.SKU = FormatSKU(prefix, f.counters[prefix])
	f.next++
	r.ID = f.next
	cp := *r
	cp.Ingredients = append([]models.RecipeIngredient(nil), r.Ingredients...)
	f.recipes[r.ID] = &cp
	return nil
}

func (f *fakeStore) Update(_ context.Context, r *models.Recipe) error {
	cp := *r
	cp.Ingredients = append([]models.RecipeIngredient(nil), r.Ingredients...)
	f.recipes[r.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateImages(_ context.Context, id uint, images map[string]any) error {
	r := f.recipes[id]
	for col, v := range images {
		switch col {
		case "image_url":
			r.ImageURL = v.(string)
		case "delivery_image_url":
			r.DeliveryImageURL = v.(string)
		case "special_instruction_image":
			r.SpecialInstructionImage = v.(string)
		}
	}
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uint) error {
	if _, ok := f.recipes[id]; !ok {
		return ErrNotFound
	}
	delete(f.recipes, id)
	return nil
}

func (f *fakeStore) LastSKU(_ context.Context, prefix string) (int, error) {
	return f.counters[prefix], nil
}

func (f *fakeStore) Ingredients(_ context.Context, ids []uint) (map[uint]models.Ingredient, error) {
	out := map[uint]models.Ingredient{}
	for _, id := range ids {
		if ing, ok := f.ingredients[id]; ok {
			out[id] = ing
		}
	}
	return out, nil
}

func (f *fakeStore) Sales(_ context.Context, ids []uint) (map[uint]SalesStats, error) {
	out := map[uint]SalesStats{}
	for id, s := range f.sales {
		if len(ids) == 0 {
			out[id] = s
			continue
		}
		for _, want := range ids {
			if want == id {
				out[id] = s
			}
		}
	}
	return out, nil
}

var chef = auth.Actor{UserID: 3, Name: "Ravi", Role: models.RoleAdmin}

func paneerInput() Input {
	return Input{
		Name:         "Paneer Tikka",
		Category:     "Starters",
		SellingPrice: 600,
		Ingredients:  []LineInput{{IngredientID: 1, Quantity: 2}, {IngredientID: 2, Quantity: 1}},
	}
}

func newTestService() (*Service, *fakeStore, *fakeImages, *fakePublisher, *fakeAudit) {
	store := newFakeStore()
	images := &fakeImages{}
	pub := &fakePublisher{}
	aw := &fakeAudit{}
	svc := NewService(store, images, pub, aw, zap.NewNop())
	svc.nowFunc = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }
	return svc, store, images, pub, aw
}

func TestSKUPrefix(t *testing.T) {
	assert.Equal(t, "STA", SKUPrefix("Starters"))
	assert.Equal(t, "MA1", SKUPrefix("ma 1n"))
	assert.Equal(t, "GEN", SKUPrefix("  --"))
	assert.Equal(t, "BEV-0042", FormatSKU("BEV", 42))
}

func TestCreateComputesMetricsAndSKU(t *testing.T) {
	svc, _, _, pub, aw := newTestService()

	v, err := svc.Create(context.Background(), chef, paneerInput())
	require.NoError(t, err)

	assert.Equal(t, "STA-0001", v.SKU)
	assert.Equal(t, 10.0, v.Overhead)
	assert.Equal(t, 143.0, v.Metrics.TotalCost)
	assert.Equal(t, 4.2, v.Metrics.MarkupFactor)
	assert.Equal(t, 76.17, v.Metrics.ProfitMargin)
	assert.Equal(t, 143.0, v.TotalCost)
	assert.True(t, v.IsProductionRecipe)

	require.Len(t, pub.events, 1)
	assert.Equal(t, realtime.TableRecipes, pub.events[0].Table)
	require.Len(t, aw.entries, 1)
	assert.Equal(t, models.AuditActionCreate, aw.entries[0].Action)

	second := paneerInput()
	second.Name = "Hara Bhara Kebab"
	v2, err := svc.Create(context.Background(), chef, second)
	require.NoError(t, err)
	assert.Equal(t, "STA-0002", v2.SKU)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	noLines := paneerInput()
	noLines.Ingredients = nil
	_, err := svc.Create(ctx, chef, noLines)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.EqualError(t, err, "At least one ingredient is required")

	zeroQty := paneerInput()
	zeroQty.Ingredients[0].Quantity = 0
	_, err = svc.Create(ctx, chef, zeroQty)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	unknown := paneerInput()
	unknown.Ingredients = []LineInput{{IngredientID: 99, Quantity: 1}}
	_, err = svc.Create(ctx, chef, unknown)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	noName := paneerInput()
	noName.Name = "   "
	_, err = svc.Create(ctx, chef, noName)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, chef, paneerInput())
	require.NoError(t, err)

	dup := paneerInput()
	dup.Name = "  paneer   TIKKA "
	_, err = svc.Create(ctx, chef, dup)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestUpdateKeepsSKUAndAudits(t *testing.T) {
	svc, _, _, pub, aw := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, chef, paneerInput())
	require.NoError(t, err)

	in := paneerInput()
	in.Category = "Mains"
	in.SellingPrice = 286
	in.Ingredients = []LineInput{{IngredientID: 1, Quantity: 2}, {IngredientID: 2, Quantity: 1}}
	updated, err := svc.Update(ctx, chef, v.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "STA-0001", updated.SKU)
	assert.Equal(t, "Mains", updated.Category)
	assert.Equal(t, 2.0, updated.Metrics.MarkupFactor)
	require.Len(t, aw.entries, 2)
	before := aw.entries[1].Before.(*models.Recipe)
	assert.Equal(t, "Starters", before.Category)
	assert.Equal(t, realtime.Update, pub.events[1].Type)
}

func TestUpdateKeepsOmittedOverheadAndProductionFlag(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	overhead, production := 25.0, false
	in := paneerInput()
	in.Overhead = &overhead
	in.IsProductionRecipe = &production
	v, err := svc.Create(ctx, chef, in)
	require.NoError(t, err)

	edit := paneerInput()
	edit.SellingPrice = 650
	updated, err := svc.Update(ctx, chef, v.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Overhead)
	assert.False(t, updated.IsProductionRecipe)
	assert.Equal(t, v.Metrics.TotalCost, updated.Metrics.TotalCost)
	assert.Equal(t, 650.0, updated.SellingPrice)
}

func TestViewUsesPOSSalesHistory(t *testing.T) {
	svc, store, _, _, _ := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, chef, paneerInput())
	require.NoError(t, err)

	first := time.Date(2025, 3, 22, 12, 0, 0, 0, time.UTC)
	last := time.Date(2025, 3, 30, 12, 0, 0, 0, time.UTC)
	store.sales[v.ID] = SalesStats{UnitsSold: 90, Revenue: 52200, AvgSalePrice: 580, FirstSoldAt: &first, LastSoldAt: &last}

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 580.0, got.Metrics.AvgSalePrice)
	assert.Equal(t, v.ID, got.Sales.RecipeID)
	assert.Greater(t, got.Metrics.SalesVelocity, 0.0)
	assert.Greater(t, got.Metrics.TotalProfitEarned, 0.0)
}

func TestDeleteRemovesImages(t *testing.T) {
	svc, store, images, _, aw := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, chef, paneerInput())
	require.NoError(t, err)
	store.recipes[v.ID].ImageURL = "http://localhost:8080/recipe-images/a.jpg"

	require.NoError(t, svc.Delete(ctx, chef, v.ID))
	assert.Equal(t, []string{"http://localhost:8080/recipe-images/a.jpg"}, images.removed)
	assert.Equal(t, models.AuditActionDelete, aw.entries[len(aw.entries)-1].Action)

	err = svc.Delete(ctx, chef, v.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSetImageReplacesOldFile(t *testing.T) {
	svc, _, images, _, _ := newTestService()
	ctx := context.Background()
	v, err := svc.Create(ctx, chef, paneerInput())
	require.NoError(t, err)

	got, err := svc.SetImage(ctx, v.ID, ImageDelivery, "one.jpg", "image/jpeg", 3, strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/recipe-images/one.jpg", got.DeliveryImageURL)

	got, err = svc.SetImage(ctx, v.ID, ImageDelivery, "two.jpg", "image/jpeg", 3, strings.NewReader("def"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/recipe-images/two.jpg", got.DeliveryImageURL)
	assert.Equal(t, []string{"http://localhost:8080/recipe-images/one.jpg"}, images.removed)

	got, err = svc.RemoveImage(ctx, v.ID, ImageDelivery)
	require.NoError(t, err)
	assert.Empty(t, got.DeliveryImageURL)

	_, err = svc.SetImage(ctx, v.ID, ImageKind("poster"), "x.jpg", "image/jpeg", 1, bytes.NewReader([]byte{1}))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestPreviewSKU(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	p, err := svc.PreviewSKU(ctx, "Beverages")
	require.NoError(t, err)
	assert.Equal(t, "BEV-0001", p.SKU)

	in := paneerInput()
	in.Category = "Beverages"
	_, err = svc.Create(ctx, chef, in)
	require.NoError(t, err)
	p, err = svc.PreviewSKU(ctx, "Beverages")
	require.NoError(t, err)
	assert.Equal(t, "BEV-0002", p.SKU)
}

func TestCreateRecipeHandlerReturnsValidationError(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Post("/api/recipes", CreateRecipeHandler(svc, zap.NewNop()))

	req := httptest.NewRequest("POST", "/api/recipes", strings.NewReader(`{"name":"Lassi","category":"Drinks","selling_price":80,"ingredients":[]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStoreLastSKUWithoutCounter(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "sku_counters" WHERE prefix = \$1`).
		WithArgs("DES", 1).
		WillReturnRows(sqlmock.NewRows([]string{"prefix", "last_value"}))

	n, err := NewStore(db).LastSKU(context.Background(), "DES")
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
