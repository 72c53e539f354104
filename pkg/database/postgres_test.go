package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store-monitor/pkg/logging"
	"store-monitor/pkg/metrics"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := NewFromConn(sqlx.NewDb(conn, "sqlmock"), &Config{Database: "test"}, logging.NewNopLogger(), metrics.NewNopCollector())
	return db, mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "u", Password: "p", Database: "stores", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=stores sslmode=disable", cfg.DSN())
}

func TestPostgresDB_ExecContext(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("DELETE FROM store_status").WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := db.ExecContext(context.Background(), "truncate", "DELETE FROM store_status")
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ReadSnapshot(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT store_id FROM store_timezones").
		WillReturnRows(sqlmock.NewRows([]string{"store_id"}).AddRow("s1").AddRow("s2"))
	mock.ExpectCommit()

	var ids []string
	err := db.ReadSnapshot(context.Background(), func(tx *Tx) error {
		return tx.SelectContext(context.Background(), "list", &ids, "SELECT store_id FROM store_timezones")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
	assert.Equal(t, 1, testutil.CollectAndCount(db.metrics.DBQueryDuration))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ReadSnapshotSelectError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT store_id").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	var ids []string
	err := db.ReadSnapshot(context.Background(), func(tx *Tx) error {
		return tx.SelectContext(context.Background(), "list", &ids, "SELECT store_id FROM store_timezones")
	})
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(db.metrics.DBErrorsTotal.WithLabelValues("select_error")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_ReadSnapshotCommitError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := db.ReadSnapshot(context.Background(), func(*Tx) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(db.metrics.DBErrorsTotal.WithLabelValues("transaction_commit_error")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDB_HealthCheck(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectPing()
	assert.NoError(t, db.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
