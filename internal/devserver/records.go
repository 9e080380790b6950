package devserver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
)

// requiredFields lists the fields an import of each data type must map. The
// first one identifies a row; rows with it blank are skipped.
var requiredFields = map[analysis.Category][]analysis.Field{
	analysis.CategoryPayroll:  {analysis.FieldName, analysis.FieldWages},
	analysis.CategoryEmployee: {analysis.FieldName, analysis.FieldWages},
	analysis.CategoryProject:  {analysis.FieldName},
	analysis.CategoryExpense:  {analysis.FieldAmount},
}

// recordStore keeps imported records per study and list resource.
type recordStore struct {
	mu      sync.Mutex
	records map[string]map[string][]analysis.Record
}

func newRecordStore() *recordStore {
	return &recordStore{records: make(map[string]map[string][]analysis.Record)}
}

func (rs *recordStore) list(studyID, resource string) []analysis.Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	out := make([]analysis.Record, len(rs.records[studyID][resource]))
	copy(out, rs.records[studyID][resource])
	return out
}

func (rs *recordStore) add(studyID, resource string, recs []analysis.Record) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.records[studyID] == nil {
		rs.records[studyID] = make(map[string][]analysis.Record)
	}
	rs.records[studyID][resource] = append(rs.records[studyID][resource], recs...)
}

// missingField returns the first required field req does not map, or "".
func missingField(req analysis.ImportRequest) analysis.Field {
	for _, f := range requiredFields[req.DataType] {
		if strings.TrimSpace(req.Mappings[string(f)]) == "" {
			return f
		}
	}
	return ""
}

// buildRecords projects the mapped columns of every row onto target fields.
func buildRecords(req analysis.ImportRequest, batchID string) ([]analysis.Record, error) {
	required, ok := requiredFields[req.DataType]
	if !ok {
		return nil, fmt.Errorf("unsupported data type: %s", req.DataType)
	}
	key := required[0]

	var out []analysis.Record
	for _, row := range req.Data {
		rec := analysis.Record{
			"id":        uuid.NewString(),
			"import_id": batchID,
			"data_type": string(req.DataType),
		}
		for field, column := range req.Mappings {
			if v, ok := row[column]; ok {
				rec[field] = v
			}
		}
		if blankValue(rec[string(key)]) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func blankValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
