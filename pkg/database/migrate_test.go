package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"regexp"
	"syscall"
	"testing"
	"testing/fstest"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"002_seed.up.sql":   {Data: []byte("INSERT INTO categories (name) VALUES ('Shoes');")},
		"001_init.up.sql":   {Data: []byte("CREATE TABLE categories (id SERIAL PRIMARY KEY);")},
		"001_init.down.sql": {Data: []byte("DROP TABLE categories;")},
		"README.md":         {Data: []byte("ignored")},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastRetry shrinks startupRetry for the duration of t.
func fastRetry(t *testing.T) {
	t.Helper()
	prev := startupRetry
	startupRetry = retryPolicy{attempts: 3, base: time.Millisecond}
	t.Cleanup(func() { startupRetry = prev })
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func expectBookkeeping(mock pgxmock.PgxPoolIface, applied ...string) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	rows := pgxmock.NewRows([]string{"version"})
	for _, v := range applied {
		rows.AddRow(v)
	}
	mock.ExpectQuery(regexp.QuoteMeta(selectVersions)).WillReturnRows(rows)
}

func TestUpMigrations_FiltersAndSorts(t *testing.T) {
	names, err := upMigrations(migrationFS())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.up.sql", "002_seed.up.sql"}, names)
}

func TestRunMigrations_SkipsApplied(t *testing.T) {
	mock := newMock(t)
	expectBookkeeping(mock, "001_init.up.sql")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO categories (name) VALUES ('Shoes');")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(insertVersion)).WithArgs("002_seed.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), quietLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_NothingPending(t *testing.T) {
	mock := newMock(t)
	expectBookkeeping(mock, "001_init.up.sql", "002_seed.up.sql")

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StatementErrorRollsBackWithoutRetry(t *testing.T) {
	fastRetry(t)
	mock := newMock(t)
	expectBookkeeping(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE broken (")).
		WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	files := fstest.MapFS{"001_init.up.sql": {Data: []byte("CREATE TABLE broken (")}}
	err := RunMigrations(context.Background(), mock, files, quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_init.up.sql")
	assert.NotContains(t, err.Error(), "attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_RetriesLostConnection(t *testing.T) {
	fastRetry(t)
	mock := newMock(t)
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnError(refused)
	expectBookkeeping(mock, "001_init.up.sql", "002_seed.up.sql")

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), quietLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_GivesUpAfterAttempts(t *testing.T) {
	fastRetry(t)
	mock := newMock(t)
	for range 3 {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnError(io.ErrUnexpectedEOF)
	}

	err := RunMigrations(context.Background(), mock, migrationFS(), quietLogger())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations after 3 attempts")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_NoFilesTouchesNothing(t *testing.T) {
	mock := newMock(t)

	require.NoError(t, RunMigrations(context.Background(), mock, fstest.MapFS{"sub/x.up.sql": {}}, quietLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
