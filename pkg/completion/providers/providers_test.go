package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"chatwidget/pkg/completion"
	"chatwidget/pkg/config"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(rt roundTripperFunc) *http.Client {
	return &http.Client{Transport: rt}
}

func newHTTPResponse(req *http.Request, status int, body []byte) *http.Response {
	resp := &http.Response{
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func chatCompletionBody(t *testing.T, content string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return data
}

func serverConfig() config.ServerConfig {
	cfg := config.Default().Server
	cfg.APIKey = "test-key"
	cfg.APIURL = "https://llm.test/v1"
	cfg.Model = "test-model"
	return cfg
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any

	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotAuth = req.Header.Get("Authorization")
		if err := json.NewDecoder(req.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = req.Body.Close()
		return newHTTPResponse(req, http.StatusOK, chatCompletionBody(t, "  Hi there!  ")), nil
	})

	provider, err := NewOpenAIProvider(completion.ProviderConfig{
		Type:       completion.ProviderOpenAI,
		Server:     serverConfig(),
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error: %v", err)
	}

	resp, err := provider.Complete(context.Background(), completion.Prompt("be nice", "hello"))
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if resp.Content != "Hi there!" {
		t.Fatalf("Expected trimmed content, got %q", resp.Content)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("Expected path '/v1/chat/completions', got %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Expected Authorization header, got %q", gotAuth)
	}
	if gotPayload["model"] != "test-model" {
		t.Fatalf("Expected model 'test-model', got %v", gotPayload["model"])
	}
	if gotPayload["max_tokens"] != float64(150) {
		t.Fatalf("Expected max_tokens 150, got %v", gotPayload["max_tokens"])
	}
	if gotPayload["temperature"] != 0.7 {
		t.Fatalf("Expected temperature 0.7, got %v", gotPayload["temperature"])
	}
	messages, ok := gotPayload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %v", gotPayload["messages"])
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be nice" {
		t.Fatalf("Expected system prompt first, got %v", first)
	}
}

func TestOpenRouterProvider_SendsTitleHeader(t *testing.T) {
	var gotTitle, gotHost string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		gotTitle = req.Header.Get("X-Title")
		gotHost = req.URL.Host
		return newHTTPResponse(req, http.StatusOK, chatCompletionBody(t, "ok")), nil
	})

	cfg := serverConfig()
	cfg.APIURL = ""
	provider, err := NewOpenRouterProvider(completion.ProviderConfig{
		Type:       completion.ProviderOpenRouter,
		Server:     cfg,
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider() error: %v", err)
	}
	if _, err := provider.Complete(context.Background(), completion.Prompt("", "hello")); err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if gotTitle != openRouterTitle {
		t.Fatalf("Expected X-Title %q, got %q", openRouterTitle, gotTitle)
	}
	if gotHost != "openrouter.ai" {
		t.Fatalf("Expected default OpenRouter host, got %q", gotHost)
	}
}

func TestOpenAIProvider_ErrorStatus(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return newHTTPResponse(req, http.StatusUnauthorized, []byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`)), nil
	})

	provider, err := NewOpenAIProvider(completion.ProviderConfig{Server: serverConfig(), HTTPClient: client})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error: %v", err)
	}
	_, err = provider.Complete(context.Background(), completion.Prompt("", "hello"))
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "openai completion") {
		t.Fatalf("Expected wrapped error, got %v", err)
	}
}

func TestOpenAIProvider_RequiresAPIKey(t *testing.T) {
	cfg := serverConfig()
	cfg.APIKey = "  "
	if _, err := NewOpenAIProvider(completion.ProviderConfig{Server: cfg}); err == nil {
		t.Fatal("Expected error when API key is missing")
	}
}

func TestToChatMessageParam_RejectsUnknownRole(t *testing.T) {
	if _, err := toChatMessageParam(completion.Message{Role: "tool", Content: "x"}); err == nil {
		t.Fatal("Expected error for unsupported role")
	}
}

func TestDefaultRegistryHasAllProviders(t *testing.T) {
	for _, pt := range []completion.ProviderType{completion.ProviderOpenAI, completion.ProviderOpenRouter, completion.ProviderGoogle} {
		if !completion.DefaultRegistry.IsRegistered(pt) {
			t.Errorf("Expected %s to be registered", pt)
		}
	}
}
