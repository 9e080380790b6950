package rdstudy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/analysis"
	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/session"
)

// Client talks to the R&D study endpoints of the practice-management API.
// Requests are never retried; a zero timeout leaves the http.Client default.
type Client struct {
	baseURL    string
	session    session.Session
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, sess session.Session, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("rd-study API request", "method", method, "path", path, "request_id", requestID)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("API request transport error", "method", method, "path", path, "error", err, "elapsed", time.Since(requestStart))
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("rd-study API response", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(respBody), "elapsed", time.Since(requestStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(respBody)}
		c.logger.Error("API request failed", "method", method, "path", path, "status", resp.StatusCode, "response", truncate(string(respBody), 200))
		if resp.StatusCode == http.StatusUnauthorized {
			c.session.OnUnauthorized()
			return nil, errors.Join(ErrUnauthorized, apiErr)
		}
		return nil, apiErr
	}

	return respBody, nil
}

func studyPath(studyID string) (string, error) {
	if studyID == "" {
		return "", ErrNoStudy
	}
	return "/rd-study/studies/" + url.PathEscape(studyID), nil
}

// AnalyzeUpload posts the file as multipart field "file".
func (c *Client) AnalyzeUpload(ctx context.Context, studyID string, upload analysis.Upload) (*analysis.Result, error) {
	base, err := studyPath(studyID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", upload.Filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, base+"/upload/analyze", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("analyzing upload: %w", err)
	}

	var res analysis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("parsing analysis response: %w", err)
	}
	return &res, nil
}

func (c *Client) ImportUpload(ctx context.Context, studyID string, req analysis.ImportRequest) (*analysis.Outcome, error) {
	base, err := studyPath(studyID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling import request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, base+"/upload/import", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("importing data: %w", err)
	}

	var outcome analysis.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("parsing import response: %w", err)
	}
	if outcome.ImportedCount < 0 {
		return nil, fmt.Errorf("parsing import response: negative imported_count %d", outcome.ImportedCount)
	}
	return &outcome, nil
}

// ListRecords reloads the list an import of category lands in.
func (c *Client) ListRecords(ctx context.Context, studyID string, category analysis.Category) ([]analysis.Record, error) {
	base, err := studyPath(studyID)
	if err != nil {
		return nil, err
	}
	resource, ok := ListResource(category)
	if !ok {
		return nil, fmt.Errorf("no record list for data type %q", category)
	}

	data, err := c.doRequest(ctx, http.MethodGet, base+"/"+resource, "", nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", resource, err)
	}

	var records []analysis.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", resource, err)
	}
	return records, nil
}

// ListResource maps an import data type to the study sub-resource it fills.
func ListResource(category analysis.Category) (string, bool) {
	switch category {
	case analysis.CategoryPayroll, analysis.CategoryEmployee:
		return "employees", true
	case analysis.CategoryProject:
		return "projects", true
	case analysis.CategoryExpense:
		return "expenses", true
	}
	return "", false
}

// Study binds the client to one study.
func (c *Client) Study(studyID string) *StudyClient {
	return &StudyClient{client: c, studyID: studyID}
}

// StudyClient is the analyzer and importer of the reconcile workflow.
type StudyClient struct {
	client  *Client
	studyID string
}

func (s *StudyClient) ID() string {
	return s.studyID
}

func (s *StudyClient) Analyze(ctx context.Context, upload analysis.Upload) (*analysis.Result, error) {
	return s.client.AnalyzeUpload(ctx, s.studyID, upload)
}

func (s *StudyClient) Import(ctx context.Context, req analysis.ImportRequest) (*analysis.Outcome, error) {
	return s.client.ImportUpload(ctx, s.studyID, req)
}

func (s *StudyClient) ListRecords(ctx context.Context, category analysis.Category) ([]analysis.Record, error) {
	return s.client.ListRecords(ctx, s.studyID, category)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
