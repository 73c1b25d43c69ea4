package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/searchdex/internal/db"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
	"github.com/kailas-cloud/searchdex/internal/mapping"
	"github.com/kailas-cloud/searchdex/internal/translate"
)

// --- Mocks ---

type mockBackend struct {
	written      []db.Document
	writeManyN   int
	deletedIDs   []string
	deleteQuery  string
	deleteAllN   int
	lastQuery    string
	commits      int
	optimizes    int
	result       *db.SearchResult
	writeErr     error
	writeErrAt   int
	queryErr     error
	deleteErr    error
	commitErr    error
	pingErr      error
	writeCallsNo int
}

func (m *mockBackend) Write(_ context.Context, doc db.Document) error {
	m.writeCallsNo++
	if m.writeErr != nil && m.writeCallsNo >= m.writeErrAt {
		return m.writeErr
	}
	m.written = append(m.written, doc)
	return nil
}

func (m *mockBackend) WriteMany(_ context.Context, docs []db.Document) error {
	m.writeManyN++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, docs...)
	return nil
}

func (m *mockBackend) DeleteByID(_ context.Context, ids ...string) error {
	m.deletedIDs = append(m.deletedIDs, ids...)
	return m.deleteErr
}

func (m *mockBackend) DeleteByQuery(_ context.Context, q string) error {
	m.deleteQuery = q
	return m.deleteErr
}

func (m *mockBackend) DeleteAll(_ context.Context) error {
	m.deleteAllN++
	return m.deleteErr
}

func (m *mockBackend) Query(_ context.Context, q string) (*db.SearchResult, error) {
	m.lastQuery = q
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.result == nil {
		return &db.SearchResult{}, nil
	}
	return m.result, nil
}

func (m *mockBackend) Commit(_ context.Context) error {
	m.commits++
	return m.commitErr
}

func (m *mockBackend) Optimize(_ context.Context) error {
	m.optimizes++
	return nil
}

func (m *mockBackend) Ping(_ context.Context) error { return m.pingErr }

func (m *mockBackend) Dialect() db.Dialect {
	return db.Dialect{Name: "mock", MatchAll: "*"}
}

var errSyntax = errors.New("syntax error near (")

// classifySyntax stands in for a backend classifier.
func classifySyntax(err error) error {
	if errors.Is(err, errSyntax) {
		return domain.NewInvalidQuery("syntax error", err)
	}
	return nil
}

type product struct {
	ID    string  `search:"id"`
	Name  string  `search:"name"`
	Price float64 `search:"price"`
	Notes string
}

func newTestService(t *testing.T, b *mockBackend, cfg Config) *Service {
	t.Helper()
	if cfg.IDField == "" {
		cfg.IDField = "id"
	}
	s, err := New(b, mapping.New(), translate.New(classifySyntax, translate.Transport), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// --- Construction ---

func TestNew_Validation(t *testing.T) {
	b := &mockBackend{}
	m := mapping.New()
	tr := translate.New()

	if _, err := New(nil, m, tr, Config{IDField: "id"}, nil); err == nil {
		t.Error("expected error for nil backend")
	}
	if _, err := New(b, nil, tr, Config{IDField: "id"}, nil); err == nil {
		t.Error("expected error for nil mapper")
	}
	if _, err := New(b, m, nil, Config{IDField: "id"}, nil); err == nil {
		t.Error("expected error for nil translator")
	}
	if _, err := New(b, m, tr, Config{IDField: "  "}, nil); err == nil {
		t.Error("expected error for blank id field")
	}
}

// --- Add ---

func TestAdd_WritesClone(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	e := entry.Entry{"id": "p-1", "name": "lamp"}
	id, err := s.Add(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-1" {
		t.Errorf("expected id p-1, got %q", id)
	}
	if len(b.written) != 1 || b.written[0].ID != "p-1" {
		t.Fatalf("unexpected writes: %+v", b.written)
	}

	b.written[0].Fields["name"] = "changed"
	if e["name"] != "lamp" {
		t.Error("caller entry must not be modified")
	}
	if b.commits != 0 {
		t.Errorf("expected no commit without AutoCommit, got %d", b.commits)
	}
}

func TestAdd_NumericID(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	id, err := s.Add(context.Background(), entry.Entry{"id": 42, "name": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "42" {
		t.Errorf("expected id 42, got %q", id)
	}
	if b.written[0].Fields["id"] != 42 {
		t.Error("expected original id value to be kept in fields")
	}
}

func TestAdd_Empty(t *testing.T) {
	s := newTestService(t, &mockBackend{}, Config{})

	for _, e := range []entry.Entry{nil, {}} {
		_, err := s.Add(context.Background(), e)
		if !errors.Is(err, domain.ErrInvalidIndexEntry) {
			t.Errorf("expected ErrInvalidIndexEntry, got %v", err)
		}
	}
}

func TestAdd_MissingID(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	_, err := s.Add(context.Background(), entry.Entry{"name": "lamp"})
	if !errors.Is(err, domain.ErrInvalidIndexEntry) {
		t.Fatalf("expected ErrInvalidIndexEntry, got %v", err)
	}
	if len(b.written) != 0 {
		t.Error("nothing must be written")
	}
}

func TestAdd_AutoGenerateID(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoGenerateID: true})

	e := entry.Entry{"id": " ", "name": "lamp"}
	id, err := s.Add(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("expected uuid, got %q", id)
	}
	if b.written[0].Fields["id"] != id {
		t.Error("generated id must be stored in the id field")
	}
	if e["id"] != " " {
		t.Error("caller entry must not receive the generated id")
	}
}

func TestAdd_AutoCommit(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoCommit: true})

	if _, err := s.Add(context.Background(), entry.Entry{"id": "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.commits != 1 {
		t.Errorf("expected 1 commit, got %d", b.commits)
	}
}

func TestAdd_BackendErrorTranslated(t *testing.T) {
	b := &mockBackend{writeErr: &db.Error{Op: db.OpWrite, Err: context.DeadlineExceeded}, writeErrAt: 1}
	s := newTestService(t, b, Config{})

	_, err := s.Add(context.Background(), entry.Entry{"id": "1"})
	if !errors.Is(err, domain.ErrServerUnavailable) {
		t.Fatalf("expected ErrServerUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("original error must stay reachable")
	}
}

func TestAdd_UnclassifiedErrorUnchanged(t *testing.T) {
	raw := errors.New("weird")
	b := &mockBackend{writeErr: raw, writeErrAt: 1}
	s := newTestService(t, b, Config{})

	_, err := s.Add(context.Background(), entry.Entry{"id": "1"})
	if err != raw { //nolint:errorlint // identity is the point
		t.Fatalf("expected original error, got %v", err)
	}
}

// --- AddAll ---

func TestAddAll_Sequential(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoCommit: true})

	ids, err := s.AddAll(context.Background(), entry.Entry{"id": "a"}, entry.Entry{"id": "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("unexpected ids %v", ids)
	}
	if b.writeCallsNo != 2 || b.writeManyN != 0 {
		t.Errorf("expected 2 single writes, got %d writes / %d batches", b.writeCallsNo, b.writeManyN)
	}
	if b.commits != 1 {
		t.Errorf("expected one commit at the end, got %d", b.commits)
	}
}

func TestAddAll_Streaming(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{Streaming: true})

	ids, err := s.AddAll(context.Background(), entry.Entry{"id": "a"}, entry.Entry{"id": "b"}, entry.Entry{"id": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || b.writeManyN != 1 || b.writeCallsNo != 0 {
		t.Errorf("expected one WriteMany, got ids=%v batches=%d writes=%d", ids, b.writeManyN, b.writeCallsNo)
	}
}

func TestAddAll_ValidatesBeforeWriting(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	_, err := s.AddAll(context.Background(), entry.Entry{"id": "a"}, entry.Entry{"name": "no id"})
	if !errors.Is(err, domain.ErrInvalidIndexEntry) {
		t.Fatalf("expected ErrInvalidIndexEntry, got %v", err)
	}
	if !strings.Contains(err.Error(), "entry 1") {
		t.Errorf("expected failing index in message, got %q", err.Error())
	}
	if len(b.written) != 0 {
		t.Error("no entry may be written when one is invalid")
	}
}

func TestAddAll_FirstFailureAborts(t *testing.T) {
	b := &mockBackend{writeErr: errors.New("boom"), writeErrAt: 2}
	s := newTestService(t, b, Config{AutoCommit: true})

	_, err := s.AddAll(context.Background(), entry.Entry{"id": "a"}, entry.Entry{"id": "b"}, entry.Entry{"id": "c"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(b.written) != 1 || b.writeCallsNo != 2 {
		t.Errorf("expected abort after second write, got written=%d calls=%d", len(b.written), b.writeCallsNo)
	}
	if b.commits != 0 {
		t.Error("no commit after a failed batch")
	}
}

func TestAddAll_Empty(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoCommit: true})

	ids, err := s.AddAll(context.Background())
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected empty result, got %v, %v", ids, err)
	}
	if b.commits != 0 || b.writeManyN != 0 {
		t.Error("empty batch must not reach the backend")
	}
}

// --- Index ---

func TestIndex_EncodesStruct(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	id, err := s.Index(context.Background(), &product{ID: "p-9", Name: "chair", Price: 12.5, Notes: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-9" {
		t.Errorf("expected p-9, got %q", id)
	}
	fields := b.written[0].Fields
	if fields["name"] != "chair" || fields["price"] != 12.5 {
		t.Errorf("unexpected fields %v", fields)
	}
	if _, ok := fields["Notes"]; ok {
		t.Error("untagged field must not be indexed")
	}
}

func TestIndex_NotAStruct(t *testing.T) {
	s := newTestService(t, &mockBackend{}, Config{})
	if _, err := s.Index(context.Background(), 42); !errors.Is(err, domain.ErrInvalidIndexEntry) {
		t.Fatalf("expected ErrInvalidIndexEntry, got %v", err)
	}
}

func TestIndexAll(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{Streaming: true})

	ids, err := s.IndexAll(context.Background(), product{ID: "1", Name: "a"}, &product{ID: "2", Name: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "1,2" {
		t.Errorf("unexpected ids %v", ids)
	}

	_, err = s.IndexAll(context.Background(), product{ID: "3"}, "oops")
	if !errors.Is(err, domain.ErrInvalidIndexEntry) {
		t.Errorf("expected ErrInvalidIndexEntry, got %v", err)
	}
}

// --- Query ---

func TestQuery_BuildsResponse(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{
		Took:  7 * time.Millisecond,
		Total: 5,
		Hits: []db.Hit{
			{ID: "1", Score: 2.5, Fields: map[string]any{"id": "1", "name": "lamp"}},
			{ID: "2", Score: 1.0, Fields: map[string]any{"name": "desk"}},
		},
	}}
	s := newTestService(t, b, Config{})

	resp, err := s.Query(context.Background(), "name:{name} AND price:[{min} TO *]", "lamp", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.lastQuery != "name:lamp AND price:[10 TO *]" {
		t.Errorf("unexpected resolved query %q", b.lastQuery)
	}
	if resp.Total != 5 || resp.Elapsed != 7*time.Millisecond || resp.Len() != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Scores[0] != 2.5 || resp.Scores[1] != 1.0 {
		t.Errorf("unexpected scores %v", resp.Scores)
	}
	if resp.Entries[1]["id"] != "2" {
		t.Error("hit id must fill a missing id field")
	}
	if resp.Native != b.result {
		t.Error("native payload must be the backend result")
	}
}

func TestQuery_LeavesNativeHitsUntouched(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{
		Hits: []db.Hit{
			{ID: "2", Fields: map[string]any{"name": "desk"}},
			{ID: "3"},
		},
	}}
	s := newTestService(t, b, Config{})

	resp, err := s.Query(context.Background(), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.result.Hits[0].Fields["id"]; ok {
		t.Error("hit fields in the native payload must not gain the id field")
	}
	if resp.Entries[0]["id"] != "2" || resp.Entries[1]["id"] != "3" {
		t.Errorf("unexpected entries %v", resp.Entries)
	}

	resp.Entries[0]["name"] = "chair"
	if b.result.Hits[0].Fields["name"] != "desk" {
		t.Error("entries must not share storage with the native payload")
	}
}

func TestQuery_EmptyResult(t *testing.T) {
	s := newTestService(t, &mockBackend{}, Config{})
	resp, err := s.Query(context.Background(), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Entries == nil || resp.Len() != 0 {
		t.Error("entries must be empty, not nil")
	}
}

func TestQuery_ParamsError(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	_, err := s.Query(context.Background(), "id:{id}", 1, 2)
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if b.lastQuery != "" {
		t.Error("backend must not be queried")
	}
}

func TestQuery_InvalidQueryCarriesQuery(t *testing.T) {
	b := &mockBackend{queryErr: &db.Error{Op: db.OpQuery, Err: errSyntax}}
	s := newTestService(t, b, Config{})

	_, err := s.Query(context.Background(), "name:({name}", "lamp")
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	var se *domain.SearchError
	if !errors.As(err, &se) {
		t.Fatal("expected SearchError")
	}
	if se.Query != "name:(lamp" {
		t.Errorf("expected resolved query attached, got %q", se.Query)
	}
	if !errors.Is(err, errSyntax) {
		t.Error("original error must stay reachable")
	}
}

// --- Generic queries ---

func TestQueryAs(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{Hits: []db.Hit{
		{ID: "1", Fields: map[string]any{"id": "1", "name": "lamp", "price": "19.5"}},
	}}}
	s := newTestService(t, b, Config{})

	got, err := QueryAs[product](context.Background(), s, "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != (product{ID: "1", Name: "lamp", Price: 19.5}) {
		t.Errorf("unexpected result %+v", got)
	}

	ptrs, err := QueryAs[*product](context.Background(), s, "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ptrs) != 1 || ptrs[0] == nil || ptrs[0].Name != "lamp" {
		t.Errorf("unexpected pointer result %+v", ptrs)
	}
}

func TestQueryAs_MappingError(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{Hits: []db.Hit{
		{ID: "1", Fields: map[string]any{"id": "1", "price": "cheap"}},
	}}}
	s := newTestService(t, b, Config{})

	_, err := QueryAs[product](context.Background(), s, "*")
	if !errors.Is(err, domain.ErrIndexEntryMapping) {
		t.Fatalf("expected ErrIndexEntryMapping, got %v", err)
	}
}

func TestQueryMap(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{Hits: []db.Hit{
		{ID: "a", Fields: map[string]any{"name": "x"}},
		{ID: "b", Fields: map[string]any{"name": "yy"}},
	}}}
	s := newTestService(t, b, Config{})

	lengths, err := QueryMap(context.Background(), s, func(e entry.Entry) (int, error) {
		return len(e.String("name")), nil
	}, "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lengths) != 2 || lengths[0] != 1 || lengths[1] != 2 {
		t.Errorf("unexpected result %v", lengths)
	}
}

func TestQueryExtract_FieldValues(t *testing.T) {
	b := &mockBackend{result: &db.SearchResult{Hits: []db.Hit{
		{ID: "a", Fields: map[string]any{}},
		{ID: "b", Fields: nil},
	}}}
	s := newTestService(t, b, Config{})

	ids, err := QueryExtract(context.Background(), s, FieldValues("id"), "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestQueryExtract_PropagatesQueryError(t *testing.T) {
	b := &mockBackend{queryErr: errors.New("down")}
	s := newTestService(t, b, Config{})

	called := false
	_, err := QueryExtract(context.Background(), s, func(*response.Response) ([]int, error) {
		called = true
		return nil, nil
	}, "*")
	if err == nil || called {
		t.Fatalf("expected error without calling the extractor, got %v (called=%v)", err, called)
	}
}

// --- Deletes, commit, liveness ---

func TestDelete(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoCommit: true})

	if err := s.Delete(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.commits != 0 {
		t.Error("empty delete must not reach the backend")
	}

	if err := s.Delete(context.Background(), "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(b.deletedIDs, ",") != "a,b" || b.commits != 1 {
		t.Errorf("unexpected deletes %v / commits %d", b.deletedIDs, b.commits)
	}
}

func TestDeleteByQuery(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	if err := s.DeleteByQuery(context.Background(), "color:{c}", "red"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.deleteQuery != "color:red" {
		t.Errorf("unexpected query %q", b.deleteQuery)
	}

	if err := s.DeleteByQuery(context.Background(), "color:{c}"); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}

	b.deleteErr = errSyntax
	err := s.DeleteByQuery(context.Background(), "color:(")
	var se *domain.SearchError
	if !errors.As(err, &se) || se.Query != "color:(" {
		t.Errorf("expected invalid query with query attached, got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{AutoCommit: true})

	if err := s.DeleteAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.deleteAllN != 1 || b.commits != 1 {
		t.Errorf("expected delete all + commit, got %d / %d", b.deleteAllN, b.commits)
	}
}

func TestCommitAndRefresh(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	if err := s.Commit(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.commits != 1 || b.optimizes != 1 {
		t.Errorf("expected 1 commit and 1 optimize, got %d / %d", b.commits, b.optimizes)
	}

	b.commitErr = &db.Error{Op: db.OpCommit, Err: context.DeadlineExceeded}
	if err := s.Commit(context.Background()); !errors.Is(err, domain.ErrServerUnavailable) {
		t.Errorf("expected ErrServerUnavailable, got %v", err)
	}
}

func TestIsAlive(t *testing.T) {
	b := &mockBackend{}
	s := newTestService(t, b, Config{})

	if !s.IsAlive(context.Background()) {
		t.Error("expected alive")
	}
	b.pingErr = errors.New("refused")
	if s.IsAlive(context.Background()) {
		t.Error("expected not alive")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.NewInvalidQuery("x", nil), "invalid_query"},
		{domain.ErrInvalidParams, "invalid_params"},
		{errors.New("other"), "error"},
	}
	for _, tc := range tests {
		if got := outcome(tc.err); got != tc.want {
			t.Errorf("outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
