package dashboard

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/httpx"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Wednesday.
var now = time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewWindow(t *testing.T) {
	w, err := NewWindow("", 0, now)
	require.NoError(t, err)
	assert.Equal(t, Daily, w.Period)
	assert.Equal(t, day(2025, 3, 27), w.Start)
	assert.Equal(t, day(2025, 4, 3), w.End)
	assert.Len(t, w.Buckets(), 7)

	w, err = NewWindow(Weekly, 0, now)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 2, 10), w.Start)
	assert.Equal(t, day(2025, 4, 7), w.End)
	assert.Equal(t, day(2025, 3, 31), w.Buckets()[7])

	w, err = NewWindow(Monthly, 3, now)
	require.NoError(t, err)
	assert.Equal(t, day(2025, 2, 1), w.Start)
	assert.Equal(t, day(2025, 5, 1), w.End)
	assert.Equal(t, []time.Time{day(2025, 2, 1), day(2025, 3, 1), day(2025, 4, 1)}, w.Buckets())

	_, err = NewWindow("hourly", 0, now)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = NewWindow(Daily, 1000, now)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestBuildChartFillsEmptyBuckets(t *testing.T) {
	w, err := NewWindow(Daily, 7, now)
	require.NoError(t, err)
	chart := BuildChart(w, []MethodRow{
		{Bucket: day(2025, 3, 31), Method: "cash", Total: 100},
		{Bucket: day(2025, 3, 31), Method: "card", Total: 50.5},
		{Bucket: day(2025, 4, 2), Method: "upi", Total: 20.25},
		{Bucket: day(2025, 4, 2), Method: "voucher", Total: 999},
	})

	require.Len(t, chart.Points, 7)
	assert.Equal(t, "2025-03-27", chart.From)
	assert.Equal(t, "2025-04-02", chart.To)
	assert.Equal(t, Point{Label: "2025-03-27"}, chart.Points[0])
	assert.Equal(t, Point{Label: "2025-03-31", Cash: 100, Card: 50.5, Total: 150.5}, chart.Points[4])
	assert.Equal(t, Point{Label: "2025-04-02", UPI: 20.25, Total: 20.25}, chart.Points[6])
	assert.Equal(t, Totals{Cash: 100, Card: 50.5, UPI: 20.25, Total: 170.75}, chart.GrandTotals)
}

type fakeStore struct {
	totals  OrderTotals
	rows    []MethodRow
	top     []RecipeSales
	gotFrom time.Time
	gotTo   time.Time
	today   time.Time
	limit   int
}

func (f *fakeStore) MethodTotals(_ context.Context, _ Period, from, to time.Time) ([]MethodRow, error) {
	f.gotFrom, f.gotTo = from, to
	return f.rows, nil
}

func (f *fakeStore) OrderTotals(_ context.Context, _, _ *time.Time, today time.Time) (*OrderTotals, error) {
	f.today = today
	t := f.totals
	return &t, nil
}

func (f *fakeStore) TopRecipes(_ context.Context, _, _ *time.Time, limit int) ([]RecipeSales, error) {
	f.limit = limit
	return f.top, nil
}

func newService(store Store) *Service {
	s := NewService(store, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestOverview(t *testing.T) {
	store := &fakeStore{totals: OrderTotals{TotalOrders: 3, TotalRevenue: 1000, OrdersToday: 2, ActiveOrders: 1}}
	ov, err := newService(store).Overview(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 333.33, ov.AverageOrderValue)
	assert.Equal(t, 1000.0, ov.TotalRevenue)
	assert.Equal(t, int64(2), ov.OrdersToday)
	assert.Equal(t, day(2025, 4, 2), store.today)

	ov, err = newService(&fakeStore{}).Overview(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, ov.AverageOrderValue)
}

func TestTopRecipesLimits(t *testing.T) {
	store := &fakeStore{}
	list, err := newService(store).TopRecipes(context.Background(), nil, nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Equal(t, defaultTopRecipes, store.limit)

	_, err = newService(store).TopRecipes(context.Background(), nil, nil, 500)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSalesChartHandler(t *testing.T) {
	store := &fakeStore{rows: []MethodRow{{Bucket: day(2025, 4, 1), Method: "cash", Total: 10}}}
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Get("/api/dashboard/sales-chart", SalesChartHandler(newService(store), zap.NewNop()))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/dashboard/sales-chart?period=monthly&count=2", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, day(2025, 3, 1), store.gotFrom)
	assert.Equal(t, day(2025, 5, 1), store.gotTo)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/dashboard/sales-chart?period=hourly", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestGormMethodTotals(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT date_trunc\(\$1, paid_at\)::date AS bucket`).
		WithArgs("week", "completed", "split", sqlmock.AnyArg(), sqlmock.AnyArg(), "completed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "method", "total"}).
			AddRow(day(2025, 3, 31), "cash", 120.5).
			AddRow(day(2025, 3, 31), "upi", 80.0))

	rows, err := NewStore(db).MethodTotals(context.Background(), Weekly, day(2025, 3, 31), day(2025, 4, 7))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "upi", rows[1].Method)
	assert.Equal(t, 80.0, rows[1].Total)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = NewStore(db).MethodTotals(context.Background(), "hourly", day(2025, 3, 31), day(2025, 4, 7))
	assert.Error(t, err)
}
