package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqlmapper/internal/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Open(db, nil), mock
}

func TestStore_CreateAndDropTable(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `things`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.CreateTable(ctx, thingsSchema(t)))

	_, err := store.lookup("things")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `things`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.DropTable(ctx, "things"))

	_, err = store.lookup("things")
	assert.ErrorIs(t, err, storage.ErrNoTable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateTableFailureDoesNotRegister(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectExec("CREATE TABLE").WillReturnError(boom)
	err := store.CreateTable(context.Background(), thingsSchema(t))
	assert.ErrorIs(t, err, boom)

	_, err = store.lookup("things")
	assert.ErrorIs(t, err, storage.ErrNoTable)
}

func TestStore_Write(t *testing.T) {
	store, mock := newMockStore(t)
	store.Register(thingsSchema(t))
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE `text` = VALUES(`text`)")).
		WithArgs(id.String(), int64(1), "monkey land").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.Write(context.Background(), storage.Write{
		Table:     "things",
		Key:       thingKey(id, 1),
		Columns:   map[string]any{"text": "monkey land"},
		Timestamp: 42,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WriteErrors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	id := uuid.New()

	err := store.Write(ctx, storage.Write{Table: "things", Key: thingKey(id, 1)})
	assert.ErrorIs(t, err, storage.ErrNoTable)

	store.Register(thingsSchema(t))
	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT").WillReturnError(boom)
	err = store.Write(ctx, storage.Write{Table: "things", Key: thingKey(id, 1), Columns: map[string]any{"count": int64(1)}})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Read(t *testing.T) {
	store, mock := newMockStore(t)
	store.Register(thingsSchema(t))
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"partition", "cluster", "count", "text", "body"}).
		AddRow(id.String(), int64(1), int64(6), "monkey land", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM `things`")).WillReturnRows(rows)

	row, err := store.Read(context.Background(), "things", thingKey(id, 1))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"partition": id,
		"cluster":   int64(1),
		"count":     int64(6),
		"text":      "monkey land",
	}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	store.Register(thingsSchema(t))

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"partition", "cluster", "count", "text", "body"}))

	_, err := store.Read(context.Background(), "things", thingKey(uuid.New(), 1))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ReadErrors(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	_, err := store.Read(ctx, "things", thingKey(uuid.New(), 1))
	assert.ErrorIs(t, err, storage.ErrNoTable)

	store.Register(thingsSchema(t))
	boom := errors.New("timeout")
	mock.ExpectQuery("SELECT").WillReturnError(boom)
	_, err = store.Read(ctx, "things", thingKey(uuid.New(), 1))
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"partition", "cluster", "count", "text", "body"}).
			AddRow("not-a-uuid", int64(1), nil, nil, nil))
	_, err = store.Read(ctx, "things", thingKey(uuid.New(), 1))
	assert.ErrorContains(t, err, "decode things.partition")
}
