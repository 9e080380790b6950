package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	StatusImported = "imported"
	StatusFailed   = "failed"
)

// Import is one commit attempt as recorded locally.
type Import struct {
	ID            int
	StudyID       string
	Filename      string
	SheetName     string
	DataType      string
	Mappings      map[string]string
	RowCount      int
	ImportedCount int
	Status        string
	Error         string
	CreatedAt     time.Time
}

func (db *DB) InsertImport(imp *Import) (int64, error) {
	mappings, err := json.Marshal(imp.Mappings)
	if err != nil {
		return 0, fmt.Errorf("encoding mappings: %w", err)
	}
	if imp.Mappings == nil {
		mappings = []byte("{}")
	}

	status := imp.Status
	if status == "" {
		status = StatusImported
	}
	created := imp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	result, err := db.Exec(
		`INSERT INTO imports (study_id, filename, sheet_name, data_type, mappings, row_count, imported_count, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.StudyID, imp.Filename, imp.SheetName, imp.DataType, string(mappings),
		imp.RowCount, imp.ImportedCount, status, nullString(imp.Error),
		created.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting import: %w", err)
	}
	return result.LastInsertId()
}

// ListImports returns imports created at or after since, newest first. A
// zero since lists everything; limit <= 0 means no limit.
func (db *DB) ListImports(since time.Time, limit int) ([]Import, error) {
	if limit <= 0 {
		limit = -1
	}
	return db.queryImports(
		`SELECT id, study_id, filename, sheet_name, data_type, mappings, row_count, imported_count, status, error, created_at
		 FROM imports
		 WHERE created_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		since.UTC().Format(timeLayout), limit,
	)
}

func (db *DB) queryImports(query string, args ...interface{}) ([]Import, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		var errText sql.NullString
		var mappings, createdStr string

		if err := rows.Scan(
			&imp.ID, &imp.StudyID, &imp.Filename, &imp.SheetName, &imp.DataType,
			&mappings, &imp.RowCount, &imp.ImportedCount, &imp.Status, &errText, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning import: %w", err)
		}

		imp.Error = errText.String
		if err := json.Unmarshal([]byte(mappings), &imp.Mappings); err != nil {
			return nil, fmt.Errorf("decoding mappings of import %d: %w", imp.ID, err)
		}
		if t, err := time.Parse(timeLayout, createdStr); err == nil {
			imp.CreatedAt = t
		}

		imports = append(imports, imp)
	}

	return imports, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
