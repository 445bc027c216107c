package migrations

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQL(t *testing.T) {
	statements := splitSQL("-- header\nCREATE TABLE a (\n  id TEXT\n);\n\nCREATE INDEX b ON a (id);\n")
	require.Len(t, statements, 2)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE a"))
	assert.Contains(t, statements[1], "CREATE INDEX b")
}

func TestEmbeddedSchemaCoversStores(t *testing.T) {
	content, err := files.ReadFile("0001_lending.sql")
	require.NoError(t, err)
	up, down, ok := strings.Cut(string(content), downMarker)
	require.True(t, ok)
	for _, table := range []string{"credit_requests", "savings_accounts", "savings_transactions", "credit_repayments", "ledger_entries", "credit_profiles", "admins", "admin_roles", "audit_logs"} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table+" (")
		assert.Contains(t, down, "DROP TABLE IF EXISTS "+table+";")
	}
	assert.Contains(t, up, "credit_requests_one_open_per_user")
	assert.Contains(t, up, "WHERE status IN ('pending', 'active') AND deleted_at IS NULL")
	assert.Contains(t, up, "savings_accounts_user_id_key")
}

func TestApplySkipsRecordedMigrations(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, "sqlmock")
	source := fstest.MapFS{
		"0001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n")},
		"0002_b.sql": {Data: []byte("CREATE TABLE b (id TEXT);\nCREATE INDEX b_id ON b (id);\n")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)")).
		WithArgs("0001_a.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)")).
		WithArgs("0002_b.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id TEXT);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX b_id ON b (id);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (filename) VALUES ($1)")).
		WithArgs("0002_b.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	log, _ := test.NewNullLogger()
	applied, err := apply(context.Background(), db, source, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRollsBackFailedFile(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, "sqlmock")
	source := fstest.MapFS{"0001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);\n")}}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	log, _ := test.NewNullLogger()
	applied, err := apply(context.Background(), db, source, log)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
