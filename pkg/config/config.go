package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config represents the application configuration shared by the widget and the
// reference chat service.
type Config struct {
	API           APIConfig    `json:"api"`
	Reveal        RevealConfig `json:"reveal"`
	Warmup        WarmupConfig `json:"warmup"`
	Limits        LimitsConfig `json:"limits"`
	Server        ServerConfig `json:"server"`
	ResponsesFile string       `json:"responses_file"`
	Offline       bool         `json:"offline"`
	LogLevel      string       `json:"log_level"`
	LogFormat     string       `json:"log_format"`
	LogFile       string       `json:"log_file"`
}

// APIConfig holds the remote chat service settings.
type APIConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RevealConfig controls the simulated streaming of answers.
type RevealConfig struct {
	IntervalMs int `json:"interval_ms"`
	Step       int `json:"step"`
}

// WarmupConfig controls the health probe sent after canned answers.
type WarmupConfig struct {
	Enabled            bool `json:"enabled"`
	MinIntervalSeconds int  `json:"min_interval_seconds"`
}

// LimitsConfig holds the request quotas enforced by the chat service. The widget
// quotes them in rate-limit messages, so both sides read the same numbers.
type LimitsConfig struct {
	CallerHourly int `json:"caller_hourly"`
	CallerDaily  int `json:"caller_daily"`
	GlobalHourly int `json:"global_hourly"`
	GlobalDaily  int `json:"global_daily"`
}

// ServerConfig holds the reference chat service settings.
type ServerConfig struct {
	Addr           string   `json:"addr"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	APIKey         string   `json:"api_key"`
	APIURL         string   `json:"api_url"`
	Temperature    float64  `json:"temperature"`
	MaxTokens      int      `json:"max_tokens"`
	TimeoutSeconds int      `json:"timeout_seconds"`
	RedisURL       string   `json:"redis_url"`
	SystemPrompt   string   `json:"system_prompt"`
	AllowedOrigins []string `json:"allowed_origins"`
	// TrustedProxies lists the peers (IPs or CIDRs) whose X-Forwarded-For and
	// X-Real-IP headers are believed
	TrustedProxies []string `json:"trusted_proxies"`
}

const (
	// MaxMessageLength is the longest query, in characters, the chat service accepts.
	MaxMessageLength = 500

	defaultSystemPrompt = `You are Kunal Bhatia's AI assistant. Key facts:
- 4+ years ML engineer, Bangalore. Specializes in sub-100ms latency optimization
- Key projects: Quicksilver (35ms inference, 10M+ requests), Swanari (3M+ users), Voice Gmail (60 emails/min)
- Tech: FastAPI, GPT-4, FAISS, React, Redis, Kafka
- Personal: Sub-4hr marathoner, rock vocalist, Italian chef, coffee addict

Be conversational, helpful, occasionally witty. Max 150 tokens.`
)

var supportedProviders = []string{"openai", "openrouter", "google"}

// Default returns a configuration with default values
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 15,
		},
		Reveal: RevealConfig{
			IntervalMs: 20,
			Step:       3,
		},
		Warmup: WarmupConfig{
			Enabled:            true,
			MinIntervalSeconds: 30,
		},
		Limits: LimitsConfig{
			CallerHourly: 20,
			CallerDaily:  50,
			GlobalHourly: 100,
			GlobalDaily:  500,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			Provider:       "openai",
			Model:          "gpt-4.1-nano-2025-04-14",
			Temperature:    0.7,
			MaxTokens:      150,
			TimeoutSeconds: 5,
			SystemPrompt:   defaultSystemPrompt,
			AllowedOrigins: []string{
				"https://kunalis.me",
				"https://www.kunalis.me",
				"http://localhost:3000",
				"http://localhost:5173",
			},
			TrustedProxies: []string{"127.0.0.1/32", "::1/128"},
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load loads configuration from the specified path and applies environment
// overrides. If the file doesn't exist, creates one with default values.
func Load(configPath string) (Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(configPath, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", err)
			}
			return ApplyEnv(cfg), nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	// Unmarshal over defaults so sections missing from older files keep sane values
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return ApplyEnv(cfg), nil
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ApplyEnv applies environment variable overrides to the config.
func ApplyEnv(cfg Config) Config {
	if baseURL := strings.TrimSpace(os.Getenv("CHATWIDGET_API_URL")); baseURL != "" {
		slog.Debug("config_env_override", "key", "CHATWIDGET_API_URL")
		cfg.API.BaseURL = baseURL
	}

	if offline := os.Getenv("CHATWIDGET_OFFLINE"); offline != "" {
		if v, err := strconv.ParseBool(offline); err == nil {
			cfg.Offline = v
		}
	}

	if level := strings.ToLower(strings.TrimSpace(os.Getenv("CHATWIDGET_LOG_LEVEL"))); level != "" {
		switch level {
		case "trace", "debug", "info", "warn", "error":
			cfg.LogLevel = level
		}
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.Server.Addr = ":" + port
		}
	}

	if redisURL := strings.TrimSpace(os.Getenv("REDIS_URL")); redisURL != "" {
		cfg.Server.RedisURL = redisURL
	}

	if cfg.Server.APIKey == "" {
		switch cfg.Server.Provider {
		case "openai":
			cfg.Server.APIKey = os.Getenv("OPENAI_API_KEY")
		case "openrouter":
			cfg.Server.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "google":
			cfg.Server.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}

	return cfg
}

// Validate checks if the widget side of the configuration is valid
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got: %q", c.API.BaseURL)
	}

	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive, got: %d", c.API.TimeoutSeconds)
	}

	if c.Reveal.IntervalMs <= 0 {
		return fmt.Errorf("reveal.interval_ms must be positive, got: %d", c.Reveal.IntervalMs)
	}

	if c.Reveal.Step <= 0 {
		return fmt.Errorf("reveal.step must be positive, got: %d", c.Reveal.Step)
	}

	if c.Warmup.MinIntervalSeconds < 0 {
		return fmt.Errorf("warmup.min_interval_seconds must not be negative, got: %d", c.Warmup.MinIntervalSeconds)
	}

	return c.Limits.Validate()
}

// Validate checks that every quota is positive.
func (l LimitsConfig) Validate() error {
	limits := []struct {
		name  string
		value int
	}{
		{"limits.caller_hourly", l.CallerHourly},
		{"limits.caller_daily", l.CallerDaily},
		{"limits.global_hourly", l.GlobalHourly},
		{"limits.global_daily", l.GlobalDaily},
	}
	for _, limit := range limits {
		if limit.value <= 0 {
			return fmt.Errorf("%s must be positive, got: %d", limit.name, limit.value)
		}
	}
	return nil
}

// ValidateServer checks the settings used by the reference chat service.
func (c Config) ValidateServer() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}

	supported := false
	for _, p := range supportedProviders {
		if c.Server.Provider == p {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported server.provider: %s", c.Server.Provider)
	}

	if c.Server.Temperature < 0 || c.Server.Temperature > 2 {
		return fmt.Errorf("server.temperature must be between 0 and 2, got: %f", c.Server.Temperature)
	}

	if c.Server.MaxTokens <= 0 {
		return fmt.Errorf("server.max_tokens must be positive, got: %d", c.Server.MaxTokens)
	}

	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be positive, got: %d", c.Server.TimeoutSeconds)
	}

	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return c.Limits.Validate()
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is taken as a
// single-host prefix. Entries that parse are returned even when others fail.
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	var firstErr error
	for _, entry := range s.TrustedProxies {
		entry = strings.TrimSpace(entry)
		var (
			prefix netip.Prefix
			err    error
		)
		if strings.Contains(entry, "/") {
			prefix, err = netip.ParsePrefix(entry)
		} else {
			var addr netip.Addr
			addr, err = netip.ParseAddr(entry)
			if err == nil {
				addr = addr.Unmap()
				prefix = netip.PrefixFrom(addr, addr.BitLen())
			}
		}
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid server.trusted_proxies entry %q: %w", entry, err)
			}
			continue
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, firstErr
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".chatwidget/config.json"
	}
	return filepath.Join(homeDir, ".chatwidget", "config.json")
}
