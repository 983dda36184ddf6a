package audit

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bhavnindersingh/RecipeManager/internal/apperr"
	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestToJSON(t *testing.T) {
	assert.Equal(t, "null", toJSON(nil))
	assert.Equal(t, `{"a":1}`, toJSON(map[string]int{"a": 1}))
	assert.Equal(t, "null", toJSON(func() {}))
}

func TestWriteInsertsSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "audit_logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	svc.Write(context.Background(), LogOptions{
		Actor:       auth.Actor{UserID: 7, Name: "Asha"},
		EntityType:  EntityTable,
		EntityID:    3,
		Action:      models.AuditActionUpdate,
		Description: "Table T3 updated",
		Before:      map[string]int{"capacity": 2},
		After:       map[string]int{"capacity": 4},
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoRejectsUnsupportedEntity(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "action", "is_undone"}).
			AddRow(5, EntityPayment, 9, models.AuditActionCreate, false))
	mock.ExpectRollback()

	err := svc.Undo(context.Background(), 5, auth.Actor{UserID: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoRejectsTwice(t *testing.T) {
	db, mock := newMockDB(t)
	svc := NewService(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "entity_type", "action", "is_undone"}).
			AddRow(5, EntityTable, models.AuditActionUpdate, true))
	mock.ExpectRollback()

	err := svc.Undo(context.Background(), 5, auth.Actor{UserID: 1})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
