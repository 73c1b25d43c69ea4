package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
)

// --- Mocks ---

type mockSearch struct {
	added        []entry.Entry
	addErr       error
	lastQuery    string
	lastParams   []any
	queryResp    *response.Response
	queryErr     error
	deleted      []string
	deleteAll    bool
	deleteQuery  string
	deleteErr    error
	commitCalls  int
	refreshCalls int
}

func (m *mockSearch) AddAll(_ context.Context, entries ...entry.Entry) ([]string, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.added = append(m.added, entries...)
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.String("id")
	}
	return ids, nil
}

func (m *mockSearch) Query(_ context.Context, q string, params ...any) (*response.Response, error) {
	m.lastQuery = q
	m.lastParams = params
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.queryResp == nil {
		return response.New(0, 0), nil
	}
	return m.queryResp, nil
}

func (m *mockSearch) Delete(_ context.Context, ids ...string) error {
	m.deleted = append(m.deleted, ids...)
	return m.deleteErr
}

func (m *mockSearch) DeleteAll(_ context.Context) error {
	m.deleteAll = true
	return m.deleteErr
}

func (m *mockSearch) DeleteByQuery(_ context.Context, q string, params ...any) error {
	m.deleteQuery = q
	m.lastParams = params
	return m.deleteErr
}

func (m *mockSearch) Commit(_ context.Context) error {
	m.commitCalls++
	return nil
}

func (m *mockSearch) Refresh(_ context.Context) error {
	m.refreshCalls++
	return nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

func newTestRouter(t *testing.T, ms *mockSearch, mh *mockHealth) http.Handler {
	t.Helper()
	if mh == nil {
		mh = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Backend: "bleve",
			Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckOK}}}
	}
	return NewRouter(NewServer(ms, mh, 2, zap.NewNop()), nil, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Entries ---

func TestAddEntries_Created(t *testing.T) {
	ms := &mockSearch{}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "POST", "/v1/entries", `{"entries":[{"id":"a","price":12.5},{"id":"b"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp AddEntriesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if strings.Join(resp.IDs, ",") != "a,b" {
		t.Errorf("unexpected ids %v", resp.IDs)
	}
	if ms.added[0]["price"] != 12.5 {
		t.Errorf("expected numbers decoded as float64, got %T", ms.added[0]["price"])
	}
}

func TestAddEntries_Validation(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"entries":`, CodeBadRequest},
		{"missing entries", `{}`, CodeValidationFailed},
		{"empty entries", `{"entries":[]}`, CodeValidationFailed},
		{"null entry", `{"entries":[null]}`, CodeValidationFailed},
		{"batch too large", `{"entries":[{"id":"1"},{"id":"2"},{"id":"3"}]}`, CodeValidationFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, "POST", "/v1/entries", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Errorf("got code %q, want %q", got, tc.code)
			}
		})
	}
}

func TestAddEntries_InvalidEntry(t *testing.T) {
	ms := &mockSearch{addErr: fmt.Errorf("entry 0: %w: missing id field %q", domain.ErrInvalidIndexEntry, "id")}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "POST", "/v1/entries", `{"entries":[{"name":"x"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != CodeInvalidEntry || !strings.Contains(resp.Message, "missing id field") {
		t.Errorf("unexpected error %+v", resp)
	}
}

func TestDeleteEntry(t *testing.T) {
	ms := &mockSearch{}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "DELETE", "/v1/entries/p-1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d, want 204", rr.Code)
	}
	if len(ms.deleted) != 1 || ms.deleted[0] != "p-1" {
		t.Errorf("unexpected deletes %v", ms.deleted)
	}
}

func TestDeleteAllEntries(t *testing.T) {
	ms := &mockSearch{}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "DELETE", "/v1/entries", "")
	if rr.Code != http.StatusNoContent || !ms.deleteAll {
		t.Fatalf("got %d, deleteAll=%v", rr.Code, ms.deleteAll)
	}
}

// --- Query ---

func TestQuery_OK(t *testing.T) {
	resp := response.New(12*time.Millisecond, 7)
	resp.Append(entry.Entry{"id": "a", "name": "lamp"}, 1.5)
	ms := &mockSearch{queryResp: resp}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "POST", "/v1/query", `{"query":"name:{n}","params":["lamp"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if ms.lastQuery != "name:{n}" || len(ms.lastParams) != 1 || ms.lastParams[0] != "lamp" {
		t.Errorf("unexpected call %q %v", ms.lastQuery, ms.lastParams)
	}

	var out QueryResponse
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TookMS != 12 || out.Total != 7 || len(out.Entries) != 1 || out.Scores[0] != 1.5 {
		t.Errorf("unexpected response %+v", out)
	}
	if out.Entries[0]["name"] != "lamp" {
		t.Errorf("unexpected entry %v", out.Entries[0])
	}
}

func TestQuery_EmptyResultEncodesArrays(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)

	rr := do(t, h, "POST", "/v1/query", `{"query":"*"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"entries":[]`) || !strings.Contains(rr.Body.String(), `"scores":[]`) {
		t.Errorf("expected empty arrays, got %s", rr.Body.String())
	}
}

func TestQuery_ErrorMapping(t *testing.T) {
	invalid := domain.NewInvalidQuery("unexpected token", errors.New("raw"))
	invalid.Query = "name:("

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid query", invalid, http.StatusBadRequest, CodeInvalidQuery},
		{"invalid params", domain.ErrInvalidParams, http.StatusBadRequest, CodeInvalidParams},
		{"mapping", domain.ErrIndexEntryMapping, http.StatusBadRequest, CodeMappingFailed},
		{"not found", domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"unavailable", domain.NewServerUnavailable("down", nil), http.StatusServiceUnavailable, CodeServerUnavailable},
		{"uncategorized", domain.NewUncategorized("unauthorized", nil), http.StatusBadGateway, CodeBackendError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestRouter(t, &mockSearch{queryErr: tc.err}, nil)
			rr := do(t, h, "POST", "/v1/query", `{"query":"x"}`)
			if rr.Code != tc.status {
				t.Fatalf("got %d, want %d", rr.Code, tc.status)
			}
			if got := decodeError(t, rr).Code; got != tc.code {
				t.Errorf("got code %q, want %q", got, tc.code)
			}
		})
	}
}

func TestQuery_InvalidQueryCarriesQuery(t *testing.T) {
	invalid := domain.NewInvalidQuery("unexpected token", nil)
	invalid.Query = "name:("
	h := newTestRouter(t, &mockSearch{queryErr: invalid}, nil)

	resp := decodeError(t, do(t, h, "POST", "/v1/query", `{"query":"name:("}`))
	if resp.Query != "name:(" {
		t.Errorf("expected query in response, got %+v", resp)
	}
	if resp.Message != "invalid query: unexpected token" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestQuery_MissingQuery(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)
	rr := do(t, h, "POST", "/v1/query", `{"params":[1]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Fields["Query"] != "is required" {
		t.Errorf("unexpected fields %v", resp.Fields)
	}
}

// --- Delete by query, commit, refresh ---

func TestDeleteByQuery(t *testing.T) {
	ms := &mockSearch{}
	h := newTestRouter(t, ms, nil)

	rr := do(t, h, "POST", "/v1/delete-by-query", `{"query":"color:{c}","params":["red"]}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("got %d", rr.Code)
	}
	if ms.deleteQuery != "color:{c}" || len(ms.lastParams) != 1 {
		t.Errorf("unexpected call %q %v", ms.deleteQuery, ms.lastParams)
	}
}

func TestCommitAndRefresh(t *testing.T) {
	ms := &mockSearch{}
	h := newTestRouter(t, ms, nil)

	if rr := do(t, h, "POST", "/v1/commit", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("commit: got %d", rr.Code)
	}
	if rr := do(t, h, "POST", "/v1/refresh", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("refresh: got %d", rr.Code)
	}
	if ms.commitCalls != 1 || ms.refreshCalls != 1 {
		t.Errorf("unexpected calls %d / %d", ms.commitCalls, ms.refreshCalls)
	}
}

// --- Health, metrics, routing ---

func TestHealthCheck(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)
	rr := do(t, h, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Backend != "bleve" || resp.Checks["backend"] != "ok" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestHealthCheck_Unhealthy(t *testing.T) {
	mh := &mockHealth{report: healthuc.Report{Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckError}}}
	h := newTestRouter(t, &mockSearch{}, mh)

	if rr := do(t, h, "GET", "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)
	rr := do(t, h, "GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestRouter(t, &mockSearch{}, nil)
	rr := do(t, h, "GET", "/v1/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if decodeError(t, rr).Code != CodeNotFound {
		t.Error("expected JSON not_found")
	}
}

func TestRouter_AuthEnabled(t *testing.T) {
	ms := &mockSearch{}
	mh := &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	h := NewRouter(NewServer(ms, mh, 0, nil), []string{"secret"}, zap.NewNop())

	if rr := do(t, h, "POST", "/v1/commit", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", rr.Code)
	}
	if rr := do(t, h, "GET", "/health", ""); rr.Code != http.StatusOK {
		t.Fatalf("health must be exempt, got %d", rr.Code)
	}
}
