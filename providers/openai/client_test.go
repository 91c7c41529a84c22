package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sesampe/preaplus/llm"
)

func TestChatReturnsContentAndUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"{\"ok\":true}"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key", "test-model", 5*time.Second)
	res, err := c.Chat(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "hola"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Text != `{"ok":true}` {
		t.Errorf("text = %q", res.Text)
	}
	if res.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", res.Usage)
	}
}

func TestChatRetriesWithoutResponseFormat(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, hasFormat := body["response_format"]; hasFormat {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"response_format is not supported","type":"invalid_request_error"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"plain"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "m", 5*time.Second)
	res, err := c.Chat(context.Background(), llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: "hola"}},
		ForceJSON: true,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want retry without response_format", calls)
	}
	if res.Text != "plain" {
		t.Errorf("text = %q", res.Text)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "m", 5*time.Second)
	if _, err := c.Chat(context.Background(), llm.Request{}); err == nil {
		t.Fatal("expected API error")
	}
}
