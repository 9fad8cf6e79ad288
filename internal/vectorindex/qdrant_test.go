package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestQdrantSearchSendsUserFilter(t *testing.T) {
	var mu sync.Mutex
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path != "/collections/docs/points/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"result":[
			{"id":"x","score":0.9,"payload":{"record_id":"doc-0","document_id":"doc","user_id":"alice","chunk_index":0,"text":"hello"}},
			{"id":"y","score":0.8,"payload":{"record_id":"other-0","document_id":"other","user_id":"bob","chunk_index":0,"text":"leak"}}
		]}`))
	}))
	defer server.Close()

	idx, err := NewQdrantIndex(QdrantConfig{URL: server.URL, APIKey: "secret", Collection: "docs"})
	if err != nil {
		t.Fatalf("NewQdrantIndex: %v", err)
	}
	matches, err := idx.Search(context.Background(), []float32{1, 0}, 3, Filter{UserID: "alice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "doc-0" || matches[0].Text != "hello" {
		t.Fatalf("unexpected matches %+v", matches)
	}

	mu.Lock()
	defer mu.Unlock()
	filter, _ := json.Marshal(body["filter"])
	if !strings.Contains(string(filter), `"key":"user_id"`) || !strings.Contains(string(filter), `"value":"alice"`) {
		t.Fatalf("expected user filter, got %s", filter)
	}
	if body["limit"] != float64(3) {
		t.Fatalf("expected limit 3, got %v", body["limit"])
	}
}

func TestQdrantUpsertUsesStablePointIDs(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.Method != http.MethodPut || !strings.HasSuffix(r.URL.Path, "/points") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Points []struct {
				ID string `json:"id"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		for _, p := range payload.Points {
			ids = append(ids, p.ID)
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	}))
	defer server.Close()

	idx, err := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "docs"})
	if err != nil {
		t.Fatalf("NewQdrantIndex: %v", err)
	}
	records := []Record{rec("doc-0", "doc", "u", 0, 1), rec("doc-1", "doc", "u", 1, 1)}
	if err := idx.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := idx.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(ids) != 4 || ids[0] != ids[2] || ids[1] != ids[3] || ids[0] == ids[1] {
		t.Fatalf("expected stable distinct ids, got %v", ids)
	}
	if ids[0] != pointID("doc-0") {
		t.Fatalf("unexpected point id %s", ids[0])
	}
}

func TestQdrantDeleteByDocumentCountsThenDeletes(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/points/count"):
			_, _ = w.Write([]byte(`{"result":{"count":3}}`))
		case strings.HasSuffix(r.URL.Path, "/points/delete"):
			_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	idx, _ := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "docs"})
	n, err := idx.DeleteByDocument(context.Background(), Filter{UserID: "u"}, "doc")
	if err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	if n != 3 || len(paths) != 2 {
		t.Fatalf("unexpected result n=%d paths=%v", n, paths)
	}
}

func TestQdrantEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	}))
	defer server.Close()

	idx, _ := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "docs"})
	if err := idx.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if len(methods) != 4 || methods[1] != "PUT /collections/docs" {
		t.Fatalf("unexpected calls %v", methods)
	}
}

func TestQdrantHTTPErrorsIncludeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	idx, _ := NewQdrantIndex(QdrantConfig{URL: server.URL})
	err := idx.Upsert(context.Background(), []Record{rec("d-0", "d", "u", 0, 1)})
	if err == nil || !strings.Contains(err.Error(), "http status 503") || !shouldRetry(err) {
		t.Fatalf("expected retryable 503 error, got %v", err)
	}
}
