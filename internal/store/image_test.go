package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/imgshare/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var imageColumns = []string{"id", "src", "name", "author_username", "created_at", "updated_at"}

func TestImageRepository_List_All(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(imageColumns).
		AddRow("11111111-1111-1111-1111-111111111111", "/uploads/1.png", "Cat", "alice", now, now).
		AddRow("22222222-2222-2222-2222-222222222222", "/uploads/2.jpg", "Dog", "ghost", now, now)
	mock.ExpectQuery(`(?s)FROM images\s+ORDER BY created_at, id$`).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ghost", got[1].AuthorUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepository_List_FilterEscapesWildcards(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)

	mock.ExpectQuery(`(?s)FROM images\s+WHERE name ILIKE \$1\s+ORDER BY`).
		WithArgs(`%100\%\_cat%`).
		WillReturnRows(sqlmock.NewRows(imageColumns))

	got, err := repo.List(context.Background(), "100%_cat")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepository_List_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)

	mock.ExpectQuery(`FROM images`).WillReturnError(errors.New("db down"))

	_, err := repo.List(context.Background(), "")
	require.Error(t, err)
}

func TestImageRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)
	id := uuid.NewString()
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM images\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(imageColumns).AddRow(id, "/uploads/x.png", "X", "alice", now, now))

	got, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "alice", got.AuthorUsername)
}

func TestImageRepository_Get_MalformedIDSkipsQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)

	_, err := repo.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepository_Get_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)
	id := uuid.NewString()

	mock.ExpectQuery(`FROM images`).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImageRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)

	mock.ExpectExec(`INSERT INTO images \(id, src, name, author_username, created_at, updated_at\)`).
		WithArgs(sqlmock.AnyArg(), "/uploads/a.png", "A", "alice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), types.Image{Src: "/uploads/a.png", Name: "A", AuthorUsername: "alice"})
	require.NoError(t, err)
	_, parseErr := uuid.Parse(got.ID)
	assert.NoError(t, parseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepository_UpdateName(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)
	id := uuid.NewString()

	mock.ExpectExec(`(?s)UPDATE images\s+SET name = \$1`).
		WithArgs("New", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.UpdateName(context.Background(), id, "New")
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImageRepository_UpdateName_MalformedID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImageRepository(db)

	affected, err := repo.UpdateName(context.Background(), "zzz", "New")
	require.NoError(t, err)
	assert.Zero(t, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}
