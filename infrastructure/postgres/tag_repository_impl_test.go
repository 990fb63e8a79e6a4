package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockTagRepo(t *testing.T) (*TagRepositoryImpl, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatal(err)
	}
	return &TagRepositoryImpl{db: db}, mock
}

// Dropping an asset's model tags must refresh usage_count on the tags
// that lost rows, not only on tags touched by the following upserts.
func TestDeleteByAssetAndSourceRecountsAffectedTags(t *testing.T) {
	repo, mock := newMockTagRepo(t)

	assetID := uuid.New()
	tagA := uuid.New()
	tagB := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "tag_id" FROM "asset_tags"`)).
		WithArgs(assetID, "yolov8n").
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).
			AddRow(tagA.String()).
			AddRow(tagB.String()))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "asset_tags"`)).
		WithArgs(assetID, "yolov8n").
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectExec(`UPDATE tags SET usage_count`).
		WithArgs(tagA, tagB).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeleteByAssetAndSource(context.Background(), assetID, "yolov8n"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDeleteByAssetAndSourceNoRowsIsNoop(t *testing.T) {
	repo, mock := newMockTagRepo(t)

	assetID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "tag_id" FROM "asset_tags"`)).
		WithArgs(assetID, "places365").
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}))

	if err := repo.DeleteByAssetAndSource(context.Background(), assetID, "places365"); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
