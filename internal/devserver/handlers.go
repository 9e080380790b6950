package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/ai"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/extract"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/rdstudy"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	wb, err := extract.Read(header.Filename, file)
	if errors.Is(err, extract.ErrUnsupported) {
		writeDetail(w, http.StatusBadRequest, "Unsupported file type. Upload an .xlsx or .csv file")
		return
	}
	if err != nil {
		s.logger.Error("reading upload", "filename", header.Filename, "error", err)
		writeDetail(w, http.StatusBadRequest, "Could not read "+header.Filename)
		return
	}

	res := &analysis.Result{Filename: header.Filename, Sheets: []analysis.Sheet{}, Recommendations: []string{}}
	for i := range wb.Tables {
		sheet, err := s.analyzeTable(r, &wb.Tables[i])
		if err != nil {
			s.logger.Error("analyzing sheet", "filename", header.Filename, "sheet", wb.Tables[i].Name, "error", err)
			writeDetail(w, http.StatusBadGateway, fmt.Sprintf("Could not analyze sheet %q", wb.Tables[i].Name))
			return
		}
		res.Sheets = append(res.Sheets, sheet)
	}
	res.Recommendations = recommendations(res)

	if err := res.Validate(); err != nil {
		s.logger.Error("analysis failed validation", "filename", header.Filename, "error", err)
		writeDetail(w, http.StatusInternalServerError, "Failed to analyze file")
		return
	}

	s.logger.Info("upload analyzed",
		"study_id", chi.URLParam(r, "studyID"),
		"filename", res.Filename,
		"sheets", len(res.Sheets),
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) analyzeTable(r *http.Request, t *extract.Table) (analysis.Sheet, error) {
	sample := ai.SheetSample{SheetName: t.Name, RowCount: len(t.Rows)}
	for _, h := range t.Header {
		sample.Columns = append(sample.Columns, ai.ColumnSample{Name: h, Values: t.Column(h, sampleValues)})
	}

	suggestion, err := s.provider.SuggestMappings(r.Context(), sample)
	if err != nil {
		return analysis.Sheet{}, err
	}
	suggestion = ai.Normalize(sample, suggestion)

	sheet := analysis.Sheet{
		SheetName:          t.Name,
		DetectedCategory:   suggestion.Category,
		CategoryConfidence: suggestion.CategoryConfidence,
		RowCount:           len(t.Rows),
		ColumnMappings:     make([]analysis.ColumnMapping, 0, len(suggestion.Columns)),
		Issues:             append([]string{}, suggestion.Issues...),
		PreviewRows:        t.Records(previewRows),
	}
	for i, c := range suggestion.Columns {
		m := analysis.ColumnMapping{
			SourceColumn: c.SourceColumn,
			Confidence:   c.Confidence,
			SampleValues: []any{},
		}
		if c.TargetField != "" {
			f := analysis.Field(c.TargetField)
			m.SuggestedTargetField = &f
		}
		for _, v := range sample.Columns[i].Values {
			m.SampleValues = append(m.SampleValues, v)
		}
		sheet.ColumnMappings = append(sheet.ColumnMappings, m)
	}
	return sheet, nil
}

func recommendations(res *analysis.Result) []string {
	out := []string{}
	for _, sheet := range res.Sheets {
		if sheet.DetectedCategory == analysis.CategoryUnknown {
			out = append(out, fmt.Sprintf("Sheet %q could not be classified; review its column mapping before importing", sheet.SheetName))
			continue
		}
		for _, f := range requiredFields[sheet.DetectedCategory] {
			if !suggestsField(sheet, f) {
				out = append(out, fmt.Sprintf("Sheet %q has no column for %s; map one before importing", sheet.SheetName, f))
			}
		}
	}
	if len(res.Sheets) > 1 {
		if p := res.Primary(); p >= 0 {
			out = append(out, fmt.Sprintf("Only sheet %q is imported; upload other sheets separately", res.Sheets[p].SheetName))
		}
	}
	return out
}

func suggestsField(sheet analysis.Sheet, f analysis.Field) bool {
	for _, m := range sheet.ColumnMappings {
		if m.Suggested() == f {
			return true
		}
	}
	return false
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	studyID := chi.URLParam(r, "studyID")

	var req analysis.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, []fieldError{{
			Loc:  []string{"body"},
			Msg:  "invalid JSON body",
			Type: "json_invalid",
		}})
		return
	}

	fieldErrs, err := s.validator.Validate(req)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to import data")
		return
	}
	if len(fieldErrs) > 0 {
		writeDetail(w, http.StatusUnprocessableEntity, fieldErrs)
		return
	}

	resource, ok := rdstudy.ListResource(req.DataType)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Cannot import data of type %s", req.DataType))
		return
	}
	if f := missingField(req); f != "" {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("Missing required field: %s", f))
		return
	}

	batchID := uuid.NewString()
	recs, err := buildRecords(req, batchID)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.records.add(studyID, resource, recs)

	s.logger.Info("data imported",
		"study_id", studyID,
		"import_id", batchID,
		"data_type", req.DataType,
		"rows", len(req.Data),
		"imported", len(recs),
	)
	writeJSON(w, http.StatusOK, analysis.Outcome{ImportedCount: len(recs)})
}

func (s *Server) handleList(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.records.list(chi.URLParam(r, "studyID"), resource))
	}
}
