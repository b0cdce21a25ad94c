package derivpostgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/imagemill/imagemill/internal/model"
)

func newRepoWithMock(t *testing.T) (PostgresRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	pg := &dbpg.DB{Master: db}

	repo := PostgresRepo{DB: pg}

	return repo, mock
}

// CREATE - SUCCESS
func TestPostgresRepo_Create_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ctime := time.Now()
	rec := &model.DerivationRecord{
		UID:            uuid.New(),
		OriginalName:   "cat.png",
		MasterPath:     "data/optimized/cat_1_ab_optimized.png",
		ThumbnailPath:  "data/thumbnails/cat_1_ab_thumbnail.png",
		AltFormatPath:  "data/webp/cat_1_ab_webp.webp",
		RemoteID:       "images/optimized/cat_1_ab_optimized",
		SavingsPercent: "42.5%",
		CreatedAt:      &ctime,
	}

	mock.ExpectQuery(`INSERT INTO derivations`).
		WithArgs(
			rec.UID,
			rec.OriginalName,
			rec.MasterPath,
			rec.ThumbnailPath,
			rec.AltFormatPath,
			rec.RemoteID,
			rec.SavingsPercent,
			rec.CreatedAt,
		).
		WillReturnRows(sqlmock.NewRows([]string{}))

	err := repo.Create(context.Background(), rec)
	require.NoError(t, err)
}

// GET - SUCCESS
func TestPostgresRepo_Get_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New().String()

	rows := sqlmock.NewRows([]string{
		"derivation_uid", "original_name", "master_path", "thumbnail_path",
		"altformat_path", "remote_id", "savings_percent", "created_at",
	}).AddRow(
		id, "cat.png", "m.png", "t.png",
		"a.webp", "images/optimized/cat_optimized", "60.0%", time.Now(),
	)

	mock.ExpectQuery(`SELECT derivation_uid`).
		WithArgs(id).
		WillReturnRows(rows)

	rec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, rec.UID.String())
	require.Equal(t, "60.0%", rec.SavingsPercent)
}

// GET - NOT FOUND
func TestPostgresRepo_Get_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT derivation_uid`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, model.ErrRecordNotFound)
}

// GETLIST - SUCCESS
func TestPostgresRepo_GetList_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	req := &model.ListRequest{
		Page:  1,
		Limit: 2,
	}

	rows := sqlmock.NewRows([]string{
		"derivation_uid", "original_name", "remote_id", "savings_percent", "created_at",
	}).
		AddRow(uuid.New(), "a.png", "", "10.0%", time.Now()).
		AddRow(uuid.New(), "b.jpg", "images/optimized/b_optimized", "35.2%", time.Now())

	mock.ExpectQuery(`SELECT derivation_uid, original_name`).
		WithArgs(2, 0).
		WillReturnRows(rows)

	res, err := repo.GetList(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res, 2)
}

// DELETE - SUCCESS
func TestPostgresRepo_Delete_OK(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	id := uuid.New().String()
	mock.ExpectQuery(`DELETE FROM derivations`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{}))

	require.NoError(t, repo.Delete(context.Background(), id))
}
