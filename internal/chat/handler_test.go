package chat_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/bootstrap"
	"docqa-backend/internal/shared/config"
)

type historyResponse struct {
	Messages []struct {
		Role    string   `json:"role"`
		Message string   `json:"message"`
		Sources []string `json:"sources"`
	} `json:"messages"`
}

func TestChatHistoryRecordsQueriesAndClears(t *testing.T) {
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
	router := app.Router

	reqQuery := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question":"what is in my files?"}`))
	reqQuery.Header.Set("Content-Type", "application/json")
	addGuestHeader(reqQuery)
	respQuery := httptest.NewRecorder()
	router.ServeHTTP(respQuery, reqQuery)
	if respQuery.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respQuery.Code)
	}

	history := getHistory(t, router)
	if len(history.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history.Messages))
	}
	if history.Messages[0].Role != "user" || history.Messages[0].Message != "what is in my files?" {
		t.Fatalf("unexpected first message %+v", history.Messages[0])
	}
	if history.Messages[1].Role != "assistant" {
		t.Fatalf("expected assistant reply second, got %s", history.Messages[1].Role)
	}

	reqDel := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil)
	addGuestHeader(reqDel)
	respDel := httptest.NewRecorder()
	router.ServeHTTP(respDel, reqDel)
	if respDel.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respDel.Code)
	}
	var cleared struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(respDel.Body).Decode(&cleared); err != nil {
		t.Fatalf("decode delete response: %v", err)
	}
	if cleared.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", cleared.Deleted)
	}

	if got := getHistory(t, router); len(got.Messages) != 0 {
		t.Fatalf("expected empty history, got %d", len(got.Messages))
	}
}

func TestChatHistoryRejectsBadLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	app, err := bootstrap.Build(config.Config{LocalStoreDir: t.TempDir(), Env: "dev"})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?limit=abc", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func getHistory(t *testing.T, router *gin.Engine) historyResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	return out
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}
