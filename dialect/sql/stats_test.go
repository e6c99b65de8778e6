package sql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDriver_RecordsQueriesAndExecs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	drv := OpenDB("sqlite3", db)
	statsDriver := NewStatsDriver(drv)

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, statsDriver.Exec(context.Background(), "CREATE TABLE users (id INTEGER)", []any{}, nil))

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"json"}).AddRow(`{"user":[]}`))
	var rows Rows
	require.NoError(t, statsDriver.Query(context.Background(), "SELECT json_object(...)", []any{}, &rows))
	require.NoError(t, rows.Close())

	stats := statsDriver.QueryStats().Stats()
	assert.Equal(t, int64(1), stats.TotalExecs)
	assert.Equal(t, int64(1), stats.TotalQueries)
	assert.Equal(t, int64(0), stats.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriver_SlowQueryHookFires(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var hookCalled bool
	drv := OpenDB("sqlite3", db)
	statsDriver := NewStatsDriver(drv,
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			hookCalled = true
			assert.Contains(t, query, "SELECT")
		}),
	)

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"json"}).AddRow("{}"))
	var rows Rows
	require.NoError(t, statsDriver.Query(context.Background(), "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())

	assert.True(t, hookCalled)
	assert.Equal(t, int64(1), statsDriver.QueryStats().Stats().SlowQueries)
}

func TestStatsDriver_RecordsErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	drv := OpenDB("sqlite3", db)
	statsDriver := NewStatsDriver(drv)

	mock.ExpectExec("INSERT").WillReturnError(assertErr)
	err = statsDriver.Exec(context.Background(), "INSERT INTO users VALUES (1)", []any{}, nil)
	require.Error(t, err)

	assert.Equal(t, int64(1), statsDriver.QueryStats().Stats().Errors)
}

func TestDebugDriver_LogsStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var logged []string
	drv := OpenDB("sqlite3", db)
	debugDriver := NewDebugDriver(drv, DebugWithLog(func(_ context.Context, v ...any) {
		for _, x := range v {
			if s, ok := x.(string); ok {
				logged = append(logged, s)
			}
		}
	}))

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, debugDriver.Exec(context.Background(), "CREATE TABLE t (id INTEGER)", []any{}, nil))

	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "CREATE TABLE")
}

func TestQueryStats_ResetClearsCounters(t *testing.T) {
	stats := &QueryStats{}
	stats.TotalQueries.Add(5)
	stats.Errors.Add(2)
	stats.Reset()
	snap := stats.Stats()
	assert.Equal(t, int64(0), snap.TotalQueries)
	assert.Equal(t, int64(0), snap.Errors)
}

var assertErr = assertError("exec failed")

type assertError string

func (e assertError) Error() string { return string(e) }
