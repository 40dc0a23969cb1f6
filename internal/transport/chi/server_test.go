package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
	documentuc "github.com/kailas-cloud/fusedex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/fusedex/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/fusedex/internal/usecase/retrieval"
)

const testDim = 4

// fakeScorers serves canned rank lists or errors.
type fakeScorers struct {
	lexical    []hit.Hit
	vector     []hit.Hit
	lexicalErr error
	vectorErr  error
}

func (f *fakeScorers) SearchLexical(context.Context, string, int) ([]hit.Hit, error) {
	return f.lexical, f.lexicalErr
}

func (f *fakeScorers) SearchVector(context.Context, []float32, int) ([]hit.Hit, error) {
	return f.vector, f.vectorErr
}

// fakeStore is an in-memory document store.
type fakeStore struct {
	docs map[string]domain.Document
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]domain.Document)}
}

func (f *fakeStore) Upsert(_ context.Context, doc *domain.Document) (bool, error) {
	_, existed := f.docs[doc.ID()]
	f.docs[doc.ID()] = *doc
	return !existed, nil
}

func (f *fakeStore) UpsertMulti(_ context.Context, docs []domain.Document) error {
	for i := range docs {
		f.docs[docs[i].ID()] = docs[i]
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (f *fakeStore) GetContents(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if doc, ok := f.docs[id]; ok {
			out[id] = doc.Content()
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, testDim)}, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	router  *gochi.Mux
	store   *fakeStore
	scorers *fakeScorers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	scorers := &fakeScorers{}
	embedder := &fakeEmbedder{}

	srv := NewServer(
		retrievaluc.New(scorers, store, embedder, testDim),
		documentuc.New(store, embedder, testDim),
		healthuc.New(&fakePinger{}, nil, nil),
		zap.NewNop(),
	)

	router := gochi.NewRouter()
	srv.Routes(router)

	return &testEnv{router: router, store: store, scorers: scorers}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func seedDocs(t *testing.T, e *testEnv, ids ...string) {
	t.Helper()
	for _, id := range ids {
		doc, err := domain.NewDocument(id, "content of "+id, make([]float32, testDim))
		if err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
		if _, err := e.store.Upsert(context.Background(), &doc); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func rankHits(ids ...string) []hit.Hit {
	hits := make([]hit.Hit, len(ids))
	for i, id := range ids {
		hits[i] = hit.New(id, i+1, 1)
	}
	return hits
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("returns fused results", func(t *testing.T) {
		e := newTestEnv(t)
		seedDocs(t, e, "A", "B", "C", "D")
		e.scorers.lexical = rankHits("A", "B", "C")
		e.scorers.vector = rankHits("B", "A", "D")

		rec := e.do(t, http.MethodPost, "/search", `{"query":"hello"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		resp := decode[searchResponse](t, rec)
		if resp.Degraded {
			t.Error("degraded = true, want false")
		}
		wantOrder := []string{"A", "B", "C", "D"}
		if resp.Total != len(wantOrder) {
			t.Fatalf("total = %d, want %d", resp.Total, len(wantOrder))
		}
		for i, id := range wantOrder {
			if resp.Items[i].ID != id {
				t.Errorf("position %d: got %q, want %q", i, resp.Items[i].ID, id)
			}
			if resp.Items[i].Content == "" {
				t.Errorf("item %q not hydrated", id)
			}
		}
		if len(resp.Items[0].Sources) != 2 {
			t.Errorf("A sources = %v, want both", resp.Items[0].Sources)
		}
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/search", `{"query":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("missing query is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/search", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.Code != codeValidationFailed {
			t.Errorf("code = %q, want %q", resp.Code, codeValidationFailed)
		}
	})

	t.Run("out-of-range rrf_k is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/search", `{"query":"q","rrf_k":5000}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("wrong-dimension embedding is 400 with sizes", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/search", `{"query":"q","embedding":[1,2]}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.Code != codeDimensionMismatch {
			t.Errorf("code = %q, want %q", resp.Code, codeDimensionMismatch)
		}
		if resp.Got == nil || *resp.Got != 2 || resp.Want == nil || *resp.Want != testDim {
			t.Errorf("sizes = %v/%v, want 2/%d", resp.Got, resp.Want, testDim)
		}
	})

	t.Run("degraded search flags the missing source", func(t *testing.T) {
		e := newTestEnv(t)
		seedDocs(t, e, "V1")
		e.scorers.lexicalErr = domain.ErrIndexUnavailable
		e.scorers.vector = rankHits("V1")

		rec := e.do(t, http.MethodPost, "/search", `{"query":"q"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		resp := decode[searchResponse](t, rec)
		if !resp.Degraded || resp.MissingSource != "lexical" {
			t.Errorf("degraded=%v missing=%q, want degraded lexical", resp.Degraded, resp.MissingSource)
		}
	})

	t.Run("fail policy maps to 502 naming the source", func(t *testing.T) {
		e := newTestEnv(t)
		e.scorers.lexicalErr = domain.ErrIndexUnavailable
		e.scorers.vector = rankHits("V1")

		rec := e.do(t, http.MethodPost, "/search", `{"query":"q","on_partial_failure":"fail"}`)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.Code != codeSourceFailure || resp.Source != "lexical" {
			t.Errorf("code=%q source=%q, want source_failure/lexical", resp.Code, resp.Source)
		}
	})

	t.Run("both sources down is 503", func(t *testing.T) {
		e := newTestEnv(t)
		e.scorers.lexicalErr = domain.ErrIndexUnavailable
		e.scorers.vectorErr = domain.ErrIndexUnavailable

		rec := e.do(t, http.MethodPost, "/search", `{"query":"q"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.Code != codeSourcesUnavailable {
			t.Errorf("code = %q, want %q", resp.Code, codeSourcesUnavailable)
		}
	})

	t.Run("unknown policy is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/search", `{"query":"q","on_partial_failure":"retry"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestDocumentEndpoints(t *testing.T) {
	t.Run("upsert creates then replaces", func(t *testing.T) {
		e := newTestEnv(t)

		rec := e.do(t, http.MethodPut, "/documents/doc-1", `{"content":"first"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d, want 201", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/api/v1/documents/doc-1" {
			t.Errorf("Location = %q", loc)
		}

		rec = e.do(t, http.MethodPut, "/documents/doc-1", `{"content":"second"}`)
		if rec.Code != http.StatusOK {
			t.Errorf("replace status = %d, want 200", rec.Code)
		}
	})

	t.Run("upsert with bad id is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPut, "/documents/doc.1", `{"content":"x"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("get returns stored document", func(t *testing.T) {
		e := newTestEnv(t)
		seedDocs(t, e, "doc-1")

		rec := e.do(t, http.MethodGet, "/documents/doc-1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		resp := decode[documentResponse](t, rec)
		if resp.ID != "doc-1" || resp.Content != "content of doc-1" {
			t.Errorf("got %+v", resp)
		}
	})

	t.Run("get missing document is 404", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodGet, "/documents/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("delete removes and then 404s", func(t *testing.T) {
		e := newTestEnv(t)
		seedDocs(t, e, "doc-1")

		rec := e.do(t, http.MethodDelete, "/documents/doc-1", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}

		rec = e.do(t, http.MethodDelete, "/documents/doc-1", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", rec.Code)
		}
	})

	t.Run("batch reports per-item outcomes", func(t *testing.T) {
		e := newTestEnv(t)

		body := `{"documents":[
			{"id":"ok-1","content":"first"},
			{"id":"","content":"missing id"},
			{"id":"ok-2","content":"second"}
		]}`
		rec := e.do(t, http.MethodPost, "/documents:batch", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		resp := decode[batchUpsertResponse](t, rec)
		if resp.Succeeded != 2 || resp.Failed != 1 {
			t.Errorf("succeeded=%d failed=%d, want 2/1", resp.Succeeded, resp.Failed)
		}
		if resp.Items[1].Error == nil || resp.Items[1].Error.Code != codeValidationFailed {
			t.Errorf("item 1 error = %+v", resp.Items[1].Error)
		}
		if _, ok := e.store.docs["ok-1"]; !ok {
			t.Error("ok-1 not stored")
		}
	})

	t.Run("empty batch is 400", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodPost, "/documents:batch", `{"documents":[]}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy database is 200", func(t *testing.T) {
		e := newTestEnv(t)
		rec := e.do(t, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		resp := decode[healthResponse](t, rec)
		if resp.Status != "ok" || resp.Checks["database"] != "ok" {
			t.Errorf("got %+v", resp)
		}
	})

	t.Run("dead database is 503", func(t *testing.T) {
		store := newFakeStore()
		srv := NewServer(
			retrievaluc.New(&fakeScorers{}, store, &fakeEmbedder{}, testDim),
			documentuc.New(store, &fakeEmbedder{}, testDim),
			healthuc.New(&fakePinger{err: context.DeadlineExceeded}, nil, nil),
			zap.NewNop(),
		)
		router := gochi.NewRouter()
		srv.Routes(router)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}
