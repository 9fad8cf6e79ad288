package retrieval_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/bootstrap"
	"docqa-backend/internal/retrieval"
	"docqa-backend/internal/shared/config"
)

func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.Build(config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func ingestText(t *testing.T, app *bootstrap.App, guest, name, text string) string {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("documentName", name); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fileWriter, err := writer.CreateFormFile("file", name+".txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte(text)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Guest-Id", guest)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("ingest: expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	return created.DocumentID
}

func postJSON(app *bootstrap.App, guest, path, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Guest-Id", guest)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

type queryResult struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NoDocuments bool     `json:"noDocuments"`
	Failed      bool     `json:"failed"`
}

func TestQueryWithoutDocumentsReturnsNoDocuments(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(app, "empty-guest", "/api/v1/query", `{"question":"what is the refund policy?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var out queryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.NoDocuments || out.Answer != retrieval.NoDocumentsAnswer {
		t.Fatalf("expected no-documents answer, got %+v", out)
	}
	if out.Sources == nil || len(out.Sources) != 0 {
		t.Fatalf("expected empty sources array, got %v", out.Sources)
	}
}

func TestQueryIsScopedToCaller(t *testing.T) {
	app := newTestApp(t)
	ingestText(t, app, "alice", "policy", "refunds are issued within thirty days of purchase")

	resp := postJSON(app, "bob", "/api/v1/query", `{"question":"how long do refunds take?"}`)
	var out queryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.NoDocuments {
		t.Fatalf("expected bob to see no documents, got %+v", out)
	}
}

func TestQueryWithoutModelKeyReportsFailure(t *testing.T) {
	app := newTestApp(t)
	ingestText(t, app, "alice", "policy", "refunds are issued within thirty days of purchase")

	resp := postJSON(app, "alice", "/api/v1/query", `{"message":"how long do refunds take?"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var out queryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !out.Failed || out.Answer != retrieval.FallbackAnswer {
		t.Fatalf("expected failed fallback answer, got %+v", out)
	}
}

func TestSearchReturnsCallerChunks(t *testing.T) {
	app := newTestApp(t)
	docID := ingestText(t, app, "alice", "policy", "refunds are issued within thirty days of purchase")
	ingestText(t, app, "bob", "other", "refunds are issued within thirty days of purchase")

	resp := postJSON(app, "alice", "/api/v1/search", `{"query":"refunds thirty days","topK":5}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Results []struct {
			DocumentID string  `json:"documentId"`
			Source     string  `json:"source"`
			Score      float64 `json:"score"`
		} `json:"results"`
		NoDocuments bool `json:"noDocuments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.NoDocuments || len(out.Results) != 1 {
		t.Fatalf("expected exactly alice's chunk, got %+v", out)
	}
	if out.Results[0].DocumentID != docID {
		t.Fatalf("expected document %s, got %s", docID, out.Results[0].DocumentID)
	}
	if out.Results[0].Source != "Document-"+docID[:8] {
		t.Fatalf("unexpected source tag %q", out.Results[0].Source)
	}
}

func TestQueryRejectsMismatchedUser(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(app, "alice", "/api/v1/query", `{"question":"hi","userId":"guest:bob"}`)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestQueryRequiresQuestion(t *testing.T) {
	app := newTestApp(t)

	resp := postJSON(app, "alice", "/api/v1/query", `{"question":"   "}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
