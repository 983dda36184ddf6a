package payments

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var billTime = time.Date(2025, 3, 31, 13, 45, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*gormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return &gormStore{db: db, now: func() time.Time { return billTime }}, mock
}

func orderRow(paid float64, status models.PaymentStatus, billed *time.Time) *sqlmock.Rows {
	var bill driver.Value
	if billed != nil {
		bill = *billed
	}
	return sqlmock.NewRows([]string{"id", "order_number", "status", "total_amount", "paid_amount", "payment_status", "bill_generated_at"}).
		AddRow(1, "ORD-20250331-0001", "ready", 150.0, paid, string(status), bill)
}

func TestStoreCreateLocksOrderAndSettles(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(orderRow(50, models.PaymentPartial, nil))
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "payments" WHERE order_id = \$1 AND payment_status = \$2`).
		WithArgs(1, "completed").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(150.0))
	mock.ExpectExec(`UPDATE "orders" SET "bill_generated_at"=\$1,"paid_amount"=\$2,"payment_status"=\$3,"updated_at"=\$4 WHERE`).
		WithArgs(billTime, 150.0, "paid", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	seenPaid := -1.0
	p := &models.Payment{OrderID: 1, Amount: 100, PaymentMethod: models.MethodCash, PaymentStatus: models.PaymentCompleted}
	o, err := s.Create(context.Background(), p, func(o *models.Order) error {
		seenPaid = o.PaidAmount
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), p.ID)
	assert.Equal(t, 50.0, seenPaid, "check sees the locked row")
	assert.Equal(t, 150.0, o.PaidAmount)
	assert.Equal(t, models.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.BillGeneratedAt)
	assert.Equal(t, billTime, *o.BillGeneratedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateCheckFailureWritesNothing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(orderRow(150, models.PaymentPaid, &billTime))
	mock.ExpectRollback()

	errFull := errors.New("already paid")
	_, err := s.Create(context.Background(), &models.Payment{OrderID: 1, Amount: 10}, func(*models.Order) error {
		return errFull
	})
	assert.ErrorIs(t, err, errFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateMissingOrder(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), &models.Payment{OrderID: 1, Amount: 10}, func(*models.Order) error { return nil })
	assert.ErrorIs(t, err, ErrOrderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRefundRecomputesFromRemainingPayments(t *testing.T) {
	s, mock := newMockStore(t)
	billed := billTime.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE "payments"\."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "amount", "payment_method", "payment_status"}).
			AddRow(7, 1, 100.0, "cash", "completed"))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(orderRow(150, models.PaymentPaid, &billed))
	mock.ExpectExec(`UPDATE "payments" SET "notes"=\$1,"payment_status"=\$2,"updated_at"=\$3 WHERE`).
		WithArgs("wrong table", "refunded", sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "payments" WHERE order_id = \$1 AND payment_status = \$2`).
		WithArgs(1, "completed").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(50.0))
	mock.ExpectExec(`UPDATE "orders" SET "paid_amount"=\$1,"payment_status"=\$2,"updated_at"=\$3 WHERE`).
		WithArgs(50.0, "partial", sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pay, o, err := s.Refund(context.Background(), 7, "wrong table")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, pay.PaymentStatus)
	assert.Equal(t, 50.0, o.PaidAmount)
	assert.Equal(t, models.PaymentPartial, o.PaymentStatus)
	require.NotNil(t, o.BillGeneratedAt)
	assert.Equal(t, billed, *o.BillGeneratedAt, "refunds keep the original bill time")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRefundTwice(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "amount", "payment_status"}).
			AddRow(7, 1, 100.0, "refunded"))
	mock.ExpectQuery(`SELECT \* FROM "orders"`).
		WillReturnRows(orderRow(0, models.PaymentUnpaid, &billTime))
	mock.ExpectRollback()

	_, _, err := s.Refund(context.Background(), 7, "")
	assert.ErrorIs(t, err, errAlreadyRefunded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMethodTotals(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT method AS payment_method, SUM\(amount\) AS total, COUNT\(\*\) AS count FROM`).
		WithArgs(1, "completed", "split", 1, "completed").
		WillReturnRows(sqlmock.NewRows([]string{"payment_method", "total", "count"}).
			AddRow("cash", 80.0, 2).
			AddRow("upi", 70.0, 1))

	totals, err := s.MethodTotals(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []MethodTotal{
		{PaymentMethod: models.MethodCash, Total: 80, Count: 2},
		{PaymentMethod: models.MethodUPI, Total: 70, Count: 1},
	}, totals)
	require.NoError(t, mock.ExpectationsWereMet())
}
