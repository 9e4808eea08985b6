package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	sql := `
-- header; with a semicolon
CREATE TABLE a (x String DEFAULT 'a;b');
/* block; comment */
INSERT INTO a VALUES ('it''s; fine');

CREATE TABLE b (y UInt8)
`
	got := Statements(sql)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (x String DEFAULT 'a;b')", got[0])
	assert.Equal(t, "INSERT INTO a VALUES ('it''s; fine')", got[1])
	assert.Equal(t, "CREATE TABLE b (y UInt8)", got[2])
}

func TestStatements_Empty(t *testing.T) {
	assert.Empty(t, Statements("-- only a comment\n  ;; \n"))
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Postgres()
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_settlement_core", pg[0].Version)
	assert.Contains(t, pg[0].SQL, "external_tx_records")

	ch, err := Clickhouse()
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		for _, stmt := range Statements(m.SQL) {
			assert.True(t, strings.HasPrefix(stmt, "CREATE"), "unexpected statement in %s: %s", m.Version, stmt)
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://u:p@localhost:9000/analytics")
	require.NoError(t, err)
	assert.Equal(t, "analytics", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)

	_, err = databaseFromDSN("clickhouse://localhost:9000/bad-name;drop")
	assert.Error(t, err)
}
