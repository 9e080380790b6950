package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "rdimport")
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, filepath.Join(dir, "rdimport.db"))
}

func TestState(t *testing.T) {
	db := openTestDB(t)

	value, err := db.GetState("study_id")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, db.SetState("study_id", "st-1"))
	require.NoError(t, db.SetState("study_id", "st-2"))

	value, err = db.GetState("study_id")
	require.NoError(t, err)
	assert.Equal(t, "st-2", value)
}

func TestImports(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := db.InsertImport(&Import{
		StudyID:       "st-1",
		Filename:      "payroll.xlsx",
		SheetName:     "Payroll",
		DataType:      "payroll",
		Mappings:      map[string]string{"name": "Full Name", "wages": "Salary"},
		RowCount:      12,
		ImportedCount: 12,
		CreatedAt:     base,
	})
	require.NoError(t, err)

	id, err := db.InsertImport(&Import{
		StudyID:   "st-1",
		Filename:  "expenses.csv",
		SheetName: "expenses",
		DataType:  "expense",
		Status:    StatusFailed,
		Error:     "Missing required field: amount",
		CreatedAt: base.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	all, err := db.ListImports(time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, "expenses.csv", all[0].Filename)
	assert.Equal(t, StatusFailed, all[0].Status)
	assert.Equal(t, "Missing required field: amount", all[0].Error)
	assert.Empty(t, all[0].Mappings)

	assert.Equal(t, StatusImported, all[1].Status)
	assert.Equal(t, map[string]string{"name": "Full Name", "wages": "Salary"}, all[1].Mappings)
	assert.Equal(t, 12, all[1].ImportedCount)
	assert.True(t, base.Equal(all[1].CreatedAt))

	recent, err := db.ListImports(base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "expenses.csv", recent[0].Filename)

	limited, err := db.ListImports(time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
