package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB returns a migrated in-memory database private to the test.
// Writer and reader share it through cache=shared under a name derived from
// t.Name(); WAL does not apply to memory databases and is left out.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	ctx := context.Background()

	writer, err := openPool(ctx, dsn, 1)
	require.NoError(t, err, "open test writer")

	reader, err := openPool(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
	}
	require.NoError(t, err, "open test reader")

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	_, err = RunMigrations(db.Writer)
	require.NoError(t, err, "run migrations")

	return db
}

// rowCount counts the rows of table through the reader pool.
func rowCount(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
