package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatwidget/pkg/completion"

	"google.golang.org/genai"
)

const googleDefaultModel = "gemini-2.5-flash"

func init() {
	completion.RegisterProvider(completion.ProviderInfo{
		Type:        completion.ProviderGoogle,
		Name:        "Google",
		Description: "Gemini models through the Google AI API",
	}, NewGoogleProvider)
}

type googleModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGoogleClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GoogleProvider answers completions with the Gemini API.
type GoogleProvider struct {
	models             googleModelsClient
	defaultModel       string
	defaultTemperature float64
	defaultMaxTokens   int
	timeout            time.Duration
}

// NewGoogleProvider creates a Gemini provider from config.
func NewGoogleProvider(cfg completion.ProviderConfig) (completion.Provider, error) {
	server := cfg.Server

	apiKey := strings.TrimSpace(server.APIKey)
	if apiKey == "" {
		slog.Debug("completion_provider_missing_key", "provider", "google")
		return nil, fmt.Errorf("google api_key is required")
	}

	model := strings.TrimSpace(server.Model)
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = googleDefaultModel
	}

	timeoutSeconds := server.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	client, err := newGoogleClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}

	slog.Debug("completion_provider_ready", "provider", "google", "model", model)
	return &GoogleProvider{
		models:             client.Models,
		defaultModel:       model,
		defaultTemperature: server.Temperature,
		defaultMaxTokens:   server.MaxTokens,
		timeout:            time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// Complete sends a single GenerateContent call.
func (p *GoogleProvider) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	model, contents, cfg, err := p.buildRequest(req)
	if err != nil {
		return completion.Response{}, err
	}

	if _, ok := ctx.Deadline(); !ok && p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return completion.Response{}, fmt.Errorf("google completion: %w", err)
	}
	return completion.Response{Content: strings.TrimSpace(extractVisibleText(resp)), Model: model}, nil
}

func (p *GoogleProvider) buildRequest(req completion.Request) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "system":
			if text := strings.TrimSpace(msg.Content); text != "" {
				system = append(system, text)
			}
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", nil, nil, fmt.Errorf("at least one user message is required")
	}

	temperature := p.defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := p.defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	return model, contents, cfg, nil
}

func extractVisibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

var _ completion.Provider = (*GoogleProvider)(nil)
