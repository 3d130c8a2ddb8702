package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookbrain/internal/domain/library"
)

// stubAnswerer 固定响应的查询编排替身。
type stubAnswerer struct {
	resp *library.QueryResponse
	err  error
}

func (s stubAnswerer) Answer(_ context.Context, query string, topK int) (*library.QueryResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if strings.TrimSpace(query) == "" {
		return nil, library.ErrEmptyQuery
	}
	return s.resp, nil
}

type stubPassages map[string]string

func (s stubPassages) Get(id string) (string, error) {
	text, ok := s[id]
	if !ok {
		return "", library.ErrPassageNotFound
	}
	return text, nil
}

func newTestServer(answerer Answerer, passages library.PassageReader) http.Handler {
	return NewServer(DefaultServerConfig(), answerer, passages).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	handler := newTestServer(stubAnswerer{}, stubPassages{})

	rec := doRequest(t, handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestQueryOK(t *testing.T) {
	resp := &library.QueryResponse{
		Query:             "whaling",
		AnthropicResponse: "Ishmael goes whaling.",
		Results: []library.RankedPassage{
			{Paragraph: "call me ishmael", Score: 0.81, Book: "moby.pdf"},
			{Paragraph: "some years ago", Score: 0.76, Book: "moby.pdf"},
		},
	}
	handler := newTestServer(stubAnswerer{resp: resp}, stubPassages{})

	rec := doRequest(t, handler, http.MethodPost, "/query",
		map[string]interface{}{"query": "whaling", "top_k": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got library.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Query != "whaling" {
		t.Errorf("query echo = %q", got.Query)
	}
	if got.AnthropicResponse != "Ishmael goes whaling." {
		t.Errorf("anthropic_response = %q", got.AnthropicResponse)
	}
	if len(got.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got.Results))
	}
	if got.Results[0].Book != "moby.pdf" || got.Results[0].Score != 0.81 {
		t.Errorf("unexpected first result: %+v", got.Results[0])
	}
}

func TestQueryEmpty(t *testing.T) {
	handler := newTestServer(stubAnswerer{}, stubPassages{})

	rec := doRequest(t, handler, http.MethodPost, "/query", map[string]interface{}{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "No query provided" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestQueryMalformedBody(t *testing.T) {
	handler := newTestServer(stubAnswerer{}, stubPassages{})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid request body") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestQueryInternalError(t *testing.T) {
	handler := newTestServer(stubAnswerer{err: errors.New("index down")}, stubPassages{})

	rec := doRequest(t, handler, http.MethodPost, "/query",
		map[string]interface{}{"query": "whaling"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// 内部细节不下发给客户端
	if strings.Contains(body["error"], "index down") {
		t.Errorf("internal error leaked: %q", body["error"])
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestDebugParagraph(t *testing.T) {
	long := strings.Repeat("a", 450)
	passages := stubPassages{
		"moby.pdf_0": "call me ishmael",
		"moby.pdf_1": long,
	}
	handler := newTestServer(stubAnswerer{}, passages)

	t.Run("found", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/debug_paragraph/moby.pdf_0", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["paragraph_id"] != "moby.pdf_0" {
			t.Errorf("paragraph_id = %q", body["paragraph_id"])
		}
		if body["paragraph"] != "call me ishmael" {
			t.Errorf("paragraph = %q", body["paragraph"])
		}
	})

	t.Run("truncated to 200 chars", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/debug_paragraph/moby.pdf_1", nil)
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body["paragraph"]) != 200 {
			t.Errorf("expected 200-char preview, got %d chars", len(body["paragraph"]))
		}
	})

	t.Run("missing id", func(t *testing.T) {
		rec := doRequest(t, handler, http.MethodGet, "/debug_paragraph/unknownbook.pdf_0", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("missing id must still be 200, got %d", rec.Code)
		}
		var body map[string]string
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["paragraph"] != library.NotFoundSentinel {
			t.Errorf("paragraph = %q, want sentinel", body["paragraph"])
		}
	})
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestServer(stubAnswerer{}, stubPassages{})

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS allow-origin header")
	}
}
