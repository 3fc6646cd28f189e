package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/record"
	"geodash/internal/tables"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_MigrationsCreateDefaultTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, table := range tables.Defaults() {
		cols, err := s.ListTableColumns(ctx, table)
		require.NoError(t, err, table)
		require.Len(t, cols, len(record.Fields)+1, table)
		assert.Equal(t, "id", cols[0].Name)
		assert.True(t, cols[0].PrimaryKey)
	}
}

func TestSQLite_InsertListUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	table := tables.Worth

	lat := 53.52
	require.NoError(t, s.InsertRecords(ctx, table, []record.Record{
		{Ort: "Worth", PLZ: "21502", Strasse: "Dorfstr.", HausNr: "1", KW: "11", Art: "Installation"},
		{Ort: "Worth", PLZ: "21502", Strasse: "Dorfstr.", HausNr: "1", KW: "bad"},
		{Ort: "Worth", PLZ: "21502", Strasse: "Am Teich", HausNr: "2", Latitude: &lat},
	}))

	rows, err := s.FetchTable(ctx, table)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	recs := make([]record.Record, len(rows))
	for i, row := range rows {
		recs[i] = record.FromRow(row, table)
	}
	assert.Equal(t, "11", recs[0].KW)
	assert.Equal(t, "bad", recs[1].KW)
	assert.Equal(t, "Worth, Dorfstr. 1", recs[0].Address)
	assert.Nil(t, recs[0].Latitude)

	n, err := s.UpdateCoords(ctx, table, record.CoordUpdate{
		PLZ: "21502", Ort: "Worth", Strasse: "Dorfstr.", HausNr: "1", Latitude: 53.5, Longitude: 10.3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.UpdateCoords(ctx, table, record.CoordUpdate{PLZ: "00000", Ort: "Nix", Strasse: "X", HausNr: "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	rows, err = s.ListTableRows(ctx, table, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, record.FromRow(rows[0], table).HasCoords())
}

func TestSQLite_EnsureTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureTable(ctx, "Gefilterte_Adressen_Test"))
	require.NoError(t, s.InsertRecord(ctx, "Gefilterte_Adressen_Test", record.Record{Ort: "Test"}))

	rows, err := s.FetchTable(ctx, "Gefilterte_Adressen_Test")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
