package dbexec

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqlmapper/internal/logging"
)

func TestStandardExecutor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	exec := NewStandardExecutor(db)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO things").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := exec.ExecContext(ctx, "INSERT INTO things VALUES (?)", 1)
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	mock.ExpectQuery("SELECT a FROM things").WillReturnRows(sqlmock.NewRows([]string{"a"}).AddRow(7))
	rows, err := exec.QueryContext(ctx, "SELECT a FROM things")
	require.NoError(t, err)
	require.True(t, rows.Next())
	var a int
	require.NoError(t, rows.Scan(&a))
	assert.Equal(t, 7, a)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStandardExecutor_NilDB(t *testing.T) {
	exec := NewStandardExecutor(nil)
	_, err := exec.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.ExecContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestLoggingExecutor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "debug", Format: "json", Output: &buf})
	exec := NewLoggingExecutor(NewStandardExecutor(db), logger)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO things").WithArgs("secret").WillReturnResult(sqlmock.NewResult(0, 1))
	_, err = exec.ExecContext(ctx, "INSERT INTO things VALUES (?)", "secret")
	require.NoError(t, err)

	boom := errors.New("boom")
	mock.ExpectQuery("SELECT a FROM things").WillReturnError(boom)
	_, err = exec.QueryContext(ctx, "SELECT a FROM things")
	assert.ErrorIs(t, err, boom)

	out := buf.String()
	assert.Contains(t, out, `"msg":"statement executed"`)
	assert.Contains(t, out, `"sql":"INSERT INTO things VALUES (?)"`)
	assert.Contains(t, out, `"msg":"statement failed"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "secret")
	assert.NoError(t, mock.ExpectationsWereMet())
}
