package seed

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"matcha/internal/database"
	"matcha/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return gormDB, mock
}

// setupSQLiteDB opens a private in-memory database with the seeded tables created.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.SeededModels()...))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func testProfile() *Profile {
	return &Profile{
		Index: 1,
		User: models.User{
			Username:     "jeandupont1",
			Email:        "jeandupont1@matcha-test.com",
			PasswordHash: "$2a$04$hash",
			FirstName:    "Jean",
			LastName:     "Dupont",
			Gender:       models.GenderMan,
			Orientation:  models.OrientationLikesWomen,
			Birthday:     time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC),
			Bio:          "Aime le vélo.",
			Verified:     true,
			FameRating:   42.5,
		},
		City: "Paris",
		Lat:  48.9,
		Lon:  2.3,
		Tags: []string{"travel", "music", "art"},
	}
}

func TestGormTx_InsertProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGormStore(db)
	p := testProfile()
	tagIDs := map[string]uint{"travel": 1, "music": 3, "art": 5}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "user_locations"`)).
		WithArgs(42, 48.9, 2.3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "user_tags"`)).
		WithArgs(42, 1, 42, 3, 42, 5).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.InsertProfile(context.Background(), p, tagIDs))
	require.NoError(t, tx.Commit())

	assert.Equal(t, uint(42), p.User.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTx_InsertProfile_LocationFailureRollsBackToSavepoint(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGormStore(db)
	p := testProfile()
	tagIDs := map[string]uint{"travel": 1, "music": 3, "art": 5}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SAVEPOINT seed_user_1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "user_locations"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectExec(regexp.QuoteMeta(`ROLLBACK TO SAVEPOINT seed_user_1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SavePoint("seed_user_1"))

	err = tx.InsertProfile(ctx, p, tagIDs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert location for user 7")

	require.NoError(t, tx.RollbackTo("seed_user_1"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTx_InsertProfile_UnknownTag(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)

	err = tx.InsertProfile(context.Background(), testProfile(), map[string]uint{"travel": 1})
	assert.ErrorIs(t, err, ErrUnknownTag)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_BeginError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := NewGormStore(db).Begin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestGormStore_EnsureTags_Idempotent(t *testing.T) {
	db := setupSQLiteDB(t)
	store := NewGormStore(db)
	ctx := context.Background()
	names := DefaultCatalog().Tags

	require.NoError(t, db.Create(&models.Tag{Name: "travel"}).Error)
	var travel models.Tag
	require.NoError(t, db.Where("name = ?", "travel").First(&travel).Error)

	first, err := store.EnsureTags(ctx, names)
	require.NoError(t, err)
	assert.Len(t, first, len(names))
	assert.Equal(t, travel.ID, first["travel"], "existing tags keep their id")

	second, err := store.EnsureTags(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.Equal(t, int64(len(names)), count)
}

func TestGormStore_EnsureTags_Empty(t *testing.T) {
	_, err := NewGormStore(setupSQLiteDB(t)).EnsureTags(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoTags)
}
