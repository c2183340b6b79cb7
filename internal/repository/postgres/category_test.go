package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var categoryCols = []string{"id", "name", "slug", "description", "created_at", "updated_at"}

func sampleCategory() *domain.Category {
	return &domain.Category{
		ID:          "c1",
		Name:        "Books",
		Slug:        "books",
		Description: "Paper and ink",
		CreatedAt:   testTime(),
		UpdatedAt:   testTime(),
	}
}

func TestCategoryRepository_Create_DuplicateName(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectExec("INSERT INTO categories").
		WithArgs(c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_categories_lower_name"})

	err := repo.Create(context.Background(), c)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCategoryRepository_GetByName_IgnoresCase(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectQuery(`WHERE lower\(name\) = lower\(\$1\)`).
		WithArgs("BOOKS").
		WillReturnRows(pgxmock.NewRows(categoryCols).
			AddRow(c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt))

	got, err := repo.GetByName(context.Background(), "BOOKS")
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCategoryRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectQuery("FROM categories WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCategoryRepository_Delete_InUse(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectExec("DELETE FROM categories").
		WithArgs("c1").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Delete(context.Background(), "c1")
	assert.ErrorIs(t, err, apperrors.ErrCategoryInUse)
}

func TestCategoryRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectExec("DELETE FROM categories").
		WithArgs("c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectQuery("FROM categories ORDER BY name").
		WillReturnRows(pgxmock.NewRows(categoryCols).
			AddRow(c.ID, c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt).
			AddRow("c2", "Games", "games", "", c.CreatedAt, c.UpdatedAt))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "games", list[1].Slug)
}

func TestCategoryRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectExec("UPDATE categories").
		WithArgs(c.Name, c.Slug, c.Description, pgxmock.AnyArg(), c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), c)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
