package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatwidget/pkg/completion"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openAIDefaultAPIURL     = "https://api.openai.com/v1"
	openAIDefaultModel      = "gpt-4.1-nano-2025-04-14"
	openRouterDefaultAPIURL = "https://openrouter.ai/api/v1"
	openRouterDefaultModel  = "openai/gpt-4.1-nano"
	openRouterTitle         = "chatwidget"
	defaultTimeoutSeconds   = 5
)

func init() {
	completion.RegisterProvider(completion.ProviderInfo{
		Type:        completion.ProviderOpenAI,
		Name:        "OpenAI",
		Description: "Direct OpenAI chat completions",
		DefaultURL:  openAIDefaultAPIURL,
	}, NewOpenAIProvider)

	completion.RegisterProvider(completion.ProviderInfo{
		Type:        completion.ProviderOpenRouter,
		Name:        "OpenRouter",
		Description: "OpenAI-compatible access to many models through OpenRouter",
		DefaultURL:  openRouterDefaultAPIURL,
	}, NewOpenRouterProvider)
}

// ChatCompletionsProvider talks to any OpenAI-compatible chat completions API.
type ChatCompletionsProvider struct {
	name               string
	client             openai.Client
	defaultModel       string
	defaultTemperature float64
	defaultMaxTokens   int
}

// NewOpenAIProvider creates a provider for the OpenAI API.
func NewOpenAIProvider(cfg completion.ProviderConfig) (completion.Provider, error) {
	return newChatCompletionsProvider("openai", cfg, openAIDefaultAPIURL, openAIDefaultModel)
}

// NewOpenRouterProvider creates a provider for the OpenRouter API.
func NewOpenRouterProvider(cfg completion.ProviderConfig) (completion.Provider, error) {
	return newChatCompletionsProvider("openrouter", cfg, openRouterDefaultAPIURL, openRouterDefaultModel,
		option.WithHeader("X-Title", openRouterTitle))
}

func newChatCompletionsProvider(name string, cfg completion.ProviderConfig, defaultURL, defaultModel string, extra ...option.RequestOption) (*ChatCompletionsProvider, error) {
	server := cfg.Server

	apiKey := strings.TrimSpace(server.APIKey)
	if apiKey == "" {
		slog.Debug("completion_provider_missing_key", "provider", name)
		return nil, fmt.Errorf("%s api_key is required", name)
	}

	apiURL := strings.TrimSpace(server.APIURL)
	if apiURL == "" {
		apiURL = defaultURL
	}

	model := strings.TrimSpace(server.Model)
	if model == "" {
		model = defaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := server.TimeoutSeconds
		if timeout <= 0 {
			timeout = defaultTimeoutSeconds
		}
		httpClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(apiURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	opts = append(opts, extra...)

	slog.Debug("completion_provider_ready", "provider", name, "api_url", apiURL, "model", model)
	return &ChatCompletionsProvider{
		name:               name,
		client:             openai.NewClient(opts...),
		defaultModel:       model,
		defaultTemperature: server.Temperature,
		defaultMaxTokens:   server.MaxTokens,
	}, nil
}

// Complete sends a non-streaming chat completion request.
func (p *ChatCompletionsProvider) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	params, err := p.buildChatParams(req)
	if err != nil {
		return completion.Response{}, err
	}

	slog.Debug("completion_request",
		"provider", p.name,
		"model", string(params.Model),
		"message_count", len(req.Messages),
	)
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return completion.Response{}, fmt.Errorf("%s completion: %w", p.name, err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	return completion.Response{Content: content, Model: resp.Model}, nil
}

func (p *ChatCompletionsProvider) buildChatParams(req completion.Request) (openai.ChatCompletionNewParams, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}
	if len(req.Messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("messages are required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		param, err := toChatMessageParam(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		messages = append(messages, param)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}

	temperature := p.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	params.Temperature = openai.Float(temperature)

	maxTokens := p.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	return params, nil
}

func toChatMessageParam(msg completion.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Role)) {
	case "system":
		return openai.SystemMessage(msg.Content), nil
	case "user":
		return openai.UserMessage(msg.Content), nil
	case "assistant":
		return openai.AssistantMessage(msg.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", msg.Role)
	}
}

var _ completion.Provider = (*ChatCompletionsProvider)(nil)
