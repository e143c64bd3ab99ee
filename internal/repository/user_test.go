package repository

import (
	"context"
	"regexp"
	"testing"

	"echoes/internal/models"
	"echoes/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedName  string
		expectedError string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "name", "email"}).
					AddRow(1, "Ada", "ada@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedName: "Ada",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedError: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError != "" {
				assert.True(t, models.IsCode(err, tt.expectedError))
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedName, user.Name)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Email: "Ada@Example.com", PasswordHash: "x", Name: "Ada"}))

	err := repo.Create(ctx, &models.User{Email: "ada@example.com", PasswordHash: "y", Name: "Imposter"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	found, err := repo.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ada", found.Name)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	ada := testutil.CreateUser(t, db, "ada")

	require.NoError(t, repo.UpdateProfile(ctx, ada.ID, map[string]interface{}{"bio": "engine notes"}))
	got, err := repo.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "engine notes", got.Bio)

	err = repo.UpdateProfile(ctx, 9999, map[string]interface{}{"bio": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_SearchAndList(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ada := testutil.CreateUser(t, db, "ada")
	grace := testutil.CreateUser(t, db, "grace")
	require.NoError(t, repo.UpdateProfile(ctx, grace.ID, map[string]interface{}{"bio": "Loves COBOL"}))
	gone := testutil.CreateUser(t, db, "gone_100%")
	require.NoError(t, db.Delete(&models.User{}, gone.ID).Error)

	users, err := repo.Search(ctx, "cobol", 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, grace.ID, users[0].ID)

	users, err = repo.Search(ctx, "%", 20)
	require.NoError(t, err)
	assert.Empty(t, users, "wildcards are matched literally and deleted users are hidden")

	users, err = repo.ListExcept(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, grace.ID, users[0].ID)
}
