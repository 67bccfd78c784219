package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewOpenRouterClient_RequiresKey(t *testing.T) {
	_, err := NewOpenRouterClient("", "", "m", 0.7, 500, time.Second)
	if err == nil {
		t.Fatal("expected missing key error")
	}
	if !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestComplete_SendsRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":" Hello Ann "}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	}))
	defer srv.Close()

	c, err := NewOpenRouterClient("test-key", srv.URL+"/v1", "openai/gpt-3.5-turbo", 0.7, 500, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a bot."},
		{Role: RoleUser, Content: "prev"},
		{Role: RoleAssistant, Content: "prev answer"},
		{Role: RoleUser, Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Hello Ann" {
		t.Fatalf("expected trimmed content, got %q", resp.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Fatalf("unexpected token usage: %+v", resp)
	}

	if got["model"] != "openai/gpt-3.5-turbo" {
		t.Fatalf("unexpected model: %v", got["model"])
	}
	if got["temperature"].(float64) != 0.7 {
		t.Fatalf("unexpected temperature: %v", got["temperature"])
	}
	if got["max_tokens"].(float64) != 500 {
		t.Fatalf("unexpected max_tokens: %v", got["max_tokens"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	last := msgs[3].(map[string]any)
	if first["role"] != "system" || last["role"] != "user" || last["content"] != "Hi" {
		t.Fatalf("unexpected message order: first=%v last=%v", first, last)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[],"usage":{"prompt_tokens":1,"completion_tokens":0}}`)
	}))
	defer srv.Close()

	c, _ := NewOpenRouterClient("test-key", srv.URL+"/v1", "m", 0, 0, 2*time.Second)
	resp, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "(empty model response)" {
		t.Fatalf("expected placeholder content, got %q", resp.Content)
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"upstream unavailable"}}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewOpenRouterClient("test-key", srv.URL+"/v1", "m", 0, 0, 2*time.Second)
	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
	if err == nil {
		t.Fatal("expected error on non-success status")
	}
	if !strings.Contains(err.Error(), "openrouter request failed") {
		t.Fatalf("unexpected err: %v", err)
	}
}
