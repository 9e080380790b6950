package rdstudy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jtoroni309-creator/Data-Norm-2-sub000/internal/session"
)

const (
	AnalyzeFailed = "Failed to analyze file"
	ImportFailed  = "Failed to import data"
)

var (
	ErrUnauthorized = errors.New("session rejected by server")
	ErrNoStudy      = errors.New("study ID is empty; set study_id in config or RDIMPORT_STUDY_ID")
)

// APIError is a non-2xx response. Detail holds the server's "detail"
// message when it sent one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("API error (status %d)", e.StatusCode)
}

// Message is the text shown to the user for a failed call: the server's
// detail verbatim when present, the client's own precondition errors as they
// are, the fallback otherwise.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if errors.Is(err, session.ErrNotLoggedIn) {
		return session.ErrNotLoggedIn.Error()
	}
	if errors.Is(err, ErrNoStudy) {
		return ErrNoStudy.Error()
	}
	return fallback
}

// parseDetail reads a FastAPI style error body. detail is either a string or
// a list of {"loc": [...], "msg": "..."} items.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if len(it.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
