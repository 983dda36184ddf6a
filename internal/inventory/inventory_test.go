package inventory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/audit"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(ev realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type nopAudit struct{ entries []audit.LogOptions }

func (a *nopAudit) Write(_ context.Context, opts audit.LogOptions) { a.entries = append(a.entries, opts) }

var actor = auth.Actor{UserID: 1, Name: "Asha"}

type fakeIngredients struct {
	items map[uint]*models.Ingredient
	refs  map[uint]int64
	next  uint
}

func newFakeIngredients() *fakeIngredients {
	return &fakeIngredients{items: map[uint]*models.Ingredient{}, refs: map[uint]int64{}}
}

func (f *fakeIngredients) List(_ context.Context, _ IngredientFilter) ([]models.Ingredient, int64, error) {
	var out []models.Ingredient
	for _, i := range f.items {
		out = append(out, *i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, int64(len(out)), nil
}

func (f *fakeIngredients) Get(_ context.Context, id uint) (*models.Ingredient, error) {
	i, ok := f.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (f *fakeIngredients) FindByKey(_ context.Context, key string) (*models.Ingredient, error) {
	for _, i := range f.items {
		if i.NameKey == key {
			cp := *i
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeIngredients) Create(_ context.Context, ing *models.Ingredient) error {
	f.next++
	ing.ID = f.next
	cp := *ing
	f.items[ing.ID] = &cp
	return nil
}

func (f *fakeIngredients) Update(_ context.Context, ing *models.Ingredient) error {
	cp := *ing
	f.items[ing.ID] = &cp
	return nil
}

func (f *fakeIngredients) Delete(_ context.Context, id uint) error {
	if _, ok := f.items[id]; !ok {
		return ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeIngredients) CountRecipeRefs(_ context.Context, id uint) (int64, error) {
	return f.refs[id], nil
}

func (f *fakeIngredients) Distinct(_ context.Context, column string) ([]string, error) {
	var out []string
	for _, i := range f.items {
		if column == "unit" {
			out = append(out, i.Unit)
		} else {
			out = append(out, i.Category)
		}
	}
	return out, nil
}

func TestNormalizeName(t *testing.T) {
	for _, in := range []string{"Red Onion", "red-onion", "RedOnion ", " RED\tonion!"} {
		assert.Equal(t, "redonion", NormalizeName(in), in)
	}
	assert.Equal(t, "tomato2", NormalizeName("Tomato #2"))
	assert.Equal(t, "", NormalizeName("  -- "))
}

func TestEffectiveDelta(t *testing.T) {
	tests := []struct {
		typ  models.StockTransactionType
		qty  float64
		dir  Direction
		want float64
		err  bool
	}{
		{models.StockPurchase, 5, "", 5, false},
		{models.StockWastage, 2, "", -2, false},
		{models.StockAdjustment, 3, DirectionAdd, 3, false},
		{models.StockAdjustment, 3, DirectionSubtract, -3, false},
		{models.StockAdjustment, 3, "", 0, true},
		{models.StockPurchase, 0, "", 0, true},
		{models.StockPurchase, -1, "", 0, true},
		{"sale", 1, "", 0, true},
	}
	for _, tt := range tests {
		got, err := EffectiveDelta(tt.typ, tt.qty, tt.dir)
		if tt.err {
			assert.True(t, apperr.IsKind(err, apperr.KindValidation), "%s %v", tt.typ, tt.qty)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func newIngredientService() (*IngredientService, *fakeIngredients, *recordingPublisher) {
	store := newFakeIngredients()
	pub := &recordingPublisher{}
	return NewIngredientService(store, pub, &nopAudit{}, zap.NewNop()), store, pub
}

func TestCreateIngredientRejectsNormalisedDuplicate(t *testing.T) {
	svc, _, pub := newIngredientService()
	ctx := context.Background()

	ing, err := svc.Create(ctx, actor, IngredientInput{Name: "Red Onion", Unit: "kg", Cost: 40, Category: "Vegetables"})
	require.NoError(t, err)
	assert.Equal(t, "redonion", ing.NameKey)
	assert.Len(t, pub.events, 1)

	_, err = svc.Create(ctx, actor, IngredientInput{Name: "red-onion", Unit: "kg", Cost: 40, Category: "Vegetables"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	// Renaming to its own key is fine.
	_, err = svc.Update(ctx, actor, ing.ID, IngredientInput{Name: "RED ONION", Unit: "kg", Cost: 42, Category: "Vegetables"})
	assert.NoError(t, err)
}

func TestCreateIngredientValidates(t *testing.T) {
	svc, _, _ := newIngredientService()
	ctx := context.Background()

	_, err := svc.Create(ctx, actor, IngredientInput{Name: " ", Unit: "kg", Category: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Create(ctx, actor, IngredientInput{Name: "Salt", Unit: "kg", Category: "x", Cost: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Create(ctx, actor, IngredientInput{Name: "Salt", Category: "x"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDeleteIngredientInUse(t *testing.T) {
	svc, store, _ := newIngredientService()
	ctx := context.Background()
	ing, err := svc.Create(ctx, actor, IngredientInput{Name: "Paneer", Unit: "kg", Cost: 300, Category: "Dairy"})
	require.NoError(t, err)

	store.refs[ing.ID] = 2
	err = svc.Delete(ctx, actor, ing.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Contains(t, err.Error(), "Ingredient in use")

	store.refs[ing.ID] = 0
	require.NoError(t, svc.Delete(ctx, actor, ing.ID))
	assert.True(t, apperr.IsKind(svc.Delete(ctx, actor, ing.ID), apperr.KindNotFound))
}

func TestCatalogueMergesDefaults(t *testing.T) {
	svc, _, _ := newIngredientService()
	_, err := svc.Create(context.Background(), actor, IngredientInput{Name: "Saffron", Unit: "strand", Cost: 5, Category: "spices"})
	require.NoError(t, err)

	cat, err := svc.Catalogue(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cat.Units, "strand")
	assert.Contains(t, cat.Categories, "Spices")
	assert.NotContains(t, cat.Categories, "spices")
}

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseAndImportIngredients(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Category", "Name", "Unit", "Cost (₹)", "Min Stock", "Vendor Name", "Vendor Phone"},
		{"Vegetables", "Tomato", "kg", 30, 5, "Fresh Farms", "98765"},
		{"Vegetables", "tomato", "kg", 32, 5, "", ""},
		{"Dairy", "Milk", "l", "abc", 0, "", ""},
		{},
		{"Dairy", "", "l", 50, 0, "", ""},
		{"Spices", "Cumin", "kg", "₹ 1,200", "", "", ""},
	})

	rows, err := ParseIngredientSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, 30.0, rows[0].Input.Cost)
	assert.Equal(t, "Fresh Farms", rows[0].Input.VendorName)
	assert.Equal(t, "Cost is not a number", rows[2].Err)
	assert.Equal(t, 7, rows[4].Row)
	assert.Equal(t, 1200.0, rows[4].Input.Cost)

	svc, _, _ := newIngredientService()
	res := svc.Import(context.Background(), actor, rows)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, "skipped", res.Rows[1].Status)
}

func TestParseIngredientSheetNeedsNameColumn(t *testing.T) {
	_, err := ParseIngredientSheet(workbook(t, [][]any{{"Unit", "Cost"}, {"kg", 1}}))
	assert.Error(t, err)
}

type fakeStock struct {
	ingredients map[uint]models.Ingredient
	balances    map[uint]float64
	avg         map[uint]float64
	settings    map[uint]models.StockSettings
	txs         []models.StockTransaction
	failNext    bool
}

func newFakeStock() *fakeStock {
	return &fakeStock{
		ingredients: map[uint]models.Ingredient{
			1: {ID: 1, Name: "Rice", Unit: "kg", Category: "Grains", Cost: 60, MinimumStock: 10},
			2: {ID: 2, Name: "Oil", Unit: "l", Category: "Oils", Cost: 150, MinimumStock: 2},
		},
		balances: map[uint]float64{},
		avg:      map[uint]float64{},
		settings: map[uint]models.StockSettings{},
	}
}

func (f *fakeStock) Append(_ context.Context, tx *models.StockTransaction) error {
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	tx.ID = uint(len(f.txs) + 1)
	tx.CreatedAt = time.Now()
	f.txs = append(f.txs, *tx)
	cur := f.balances[tx.IngredientID]
	if tx.TransactionType == models.StockPurchase && tx.UnitCost != nil {
		base := cur
		if base < 0 {
			base = 0
		}
		f.avg[tx.IngredientID] = (base*f.avg[tx.IngredientID] + tx.Quantity**tx.UnitCost) / (base + tx.Quantity)
	}
	f.balances[tx.IngredientID] = cur + tx.Quantity
	return nil
}

func (f *fakeStock) Levels(_ context.Context, lf LevelFilter) ([]StockLevel, error) {
	var out []StockLevel
	for id, ing := range f.ingredients {
		if lf.IngredientID != 0 && lf.IngredientID != id {
			continue
		}
		l := StockLevel{
			IngredientID:    id,
			Name:            ing.Name,
			Unit:            ing.Unit,
			Category:        ing.Category,
			CurrentQuantity: f.balances[id],
			MinimumQuantity: ing.MinimumStock,
			UnitCostAvg:     ing.Cost,
		}
		if a := f.avg[id]; a != 0 {
			l.UnitCostAvg = a
		}
		if st, ok := f.settings[id]; ok {
			l.MinimumQuantity = st.MinStockLevel
			l.StorageLocation = st.StorageLocation
		}
		if lf.LowOnly && !l.IsLow() {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (f *fakeStock) UpsertSettings(_ context.Context, s *models.StockSettings) error {
	f.settings[s.IngredientID] = *s
	return nil
}

func (f *fakeStock) Transactions(_ context.Context, _ TxFilter) ([]models.StockTransaction, error) {
	return f.txs, nil
}

func (f *fakeStock) CountTransactionsSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, t := range f.txs {
		if !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStock) IngredientExists(_ context.Context, id uint) (bool, error) {
	_, ok := f.ingredients[id]
	return ok, nil
}

func TestRecordAppliesSignedDelta(t *testing.T) {
	store := newFakeStock()
	pub := &recordingPublisher{}
	svc := NewStockService(store, pub, &nopAudit{}, nil, zap.NewNop())
	ctx := context.Background()

	cost := 50.0
	res, err := svc.Record(ctx, actor, RecordInput{IngredientID: 1, TransactionType: models.StockPurchase, Quantity: 20, UnitCost: &cost})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Transaction.Quantity)
	assert.Equal(t, 20.0, res.Level.CurrentQuantity)
	assert.Equal(t, 50.0, res.Level.UnitCostAvg)
	require.NotNil(t, res.Transaction.CreatedBy)

	res, err = svc.Record(ctx, actor, RecordInput{IngredientID: 1, TransactionType: models.StockWastage, Quantity: 12.5})
	require.NoError(t, err)
	assert.Equal(t, -12.5, res.Transaction.Quantity)
	assert.Equal(t, 7.5, res.Level.CurrentQuantity)
	assert.Equal(t, StatusLow, res.Level.Status())

	_, err = svc.Record(ctx, actor, RecordInput{IngredientID: 1, TransactionType: models.StockAdjustment, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Record(ctx, actor, RecordInput{IngredientID: 99, TransactionType: models.StockPurchase, Quantity: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	assert.Len(t, store.txs, 2)
	assert.Len(t, pub.events, 4)
}

func TestRecordWeightedAverageCost(t *testing.T) {
	store := newFakeStock()
	svc := NewStockService(store, &recordingPublisher{}, &nopAudit{}, nil, zap.NewNop())
	ctx := context.Background()

	c1, c2 := 100.0, 160.0
	_, err := svc.Record(ctx, actor, RecordInput{IngredientID: 2, TransactionType: models.StockPurchase, Quantity: 3, UnitCost: &c1})
	require.NoError(t, err)
	res, err := svc.Record(ctx, actor, RecordInput{IngredientID: 2, TransactionType: models.StockPurchase, Quantity: 1, UnitCost: &c2})
	require.NoError(t, err)
	assert.Equal(t, 115.0, res.Level.UnitCostAvg)
}

func TestBulkAddKeepsSuccesses(t *testing.T) {
	store := newFakeStock()
	svc := NewStockService(store, &recordingPublisher{}, &nopAudit{}, nil, zap.NewNop())

	results := svc.BulkAdd(context.Background(), actor, []RecordInput{
		{IngredientID: 1, TransactionType: models.StockPurchase, Quantity: 5},
		{IngredientID: 1, TransactionType: models.StockPurchase, Quantity: 0},
		{IngredientID: 2, TransactionType: models.StockPurchase, Quantity: 1},
	})
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, 5.0, store.balances[1])

	store.failNext = true
	results = svc.BulkAdd(context.Background(), actor, []RecordInput{{IngredientID: 1, TransactionType: models.StockPurchase, Quantity: 1}})
	assert.Equal(t, "Failed to record transaction", results[0].Error)
}

func TestSummaryAndSettings(t *testing.T) {
	store := newFakeStock()
	svc := NewStockService(store, &recordingPublisher{}, &nopAudit{}, nil, zap.NewNop())
	ctx := context.Background()

	cost := 60.0
	_, err := svc.Record(ctx, actor, RecordInput{IngredientID: 1, TransactionType: models.StockPurchase, Quantity: 15, UnitCost: &cost})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalItems)
	assert.Equal(t, 900.0, sum.TotalValue)
	assert.Equal(t, 1, sum.OutOfStockCount)
	assert.Equal(t, int64(1), sum.TransactionsLast24)

	level, err := svc.UpdateSettings(ctx, 1, SettingsInput{MinStockLevel: 20, StorageLocation: "Dry store"})
	require.NoError(t, err)
	assert.Equal(t, StatusLow, level.Status())
	assert.Equal(t, "Dry store", level.StorageLocation)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	assert.Len(t, low, 2)

	_, err = svc.UpdateSettings(ctx, 1, SettingsInput{MinStockLevel: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGormIngredientStoreCountRecipeRefs(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "recipe_ingredients" WHERE ingredient_id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewIngredientStore(db).CountRecipeRefs(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
