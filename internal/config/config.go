package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	voicemodel "github.com/apexrevenue/atlas-agent/internal/model/voice"
)

// Config aggregates every runtime setting of the agent.
type Config struct {
	Server     ServerConfig
	Agent      AgentConfig
	Decision   DecisionConfig
	Voice      VoiceConfig
	Transcript TranscriptConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	decision, err := loadDecisionConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	transcript, err := loadTranscriptConfig()
	if err != nil {
		return nil, err
	}

	if decision.RequestTimeout >= agent.FailsafeTimeout {
		return nil, fmt.Errorf("DECISION_TIMEOUT (%s) must be shorter than AGENT_FAILSAFE_TIMEOUT (%s)",
			decision.RequestTimeout, agent.FailsafeTimeout)
	}

	return &Config{
		Server:     server,
		Agent:      agent,
		Decision:   decision,
		Voice:      voice,
		Transcript: transcript,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AgentConfig tunes the interaction state machine.
type AgentConfig struct {
	FailsafeTimeout time.Duration
	AudioOutput     bool
}

func loadAgentConfig() (AgentConfig, error) {
	failsafe, err := parseOptionalDurationEnv("AGENT_FAILSAFE_TIMEOUT")
	if err != nil {
		return AgentConfig{}, err
	}

	audioOutput, err := parseOptionalBoolEnv("AGENT_AUDIO_OUTPUT")
	if err != nil {
		return AgentConfig{}, err
	}

	cfg := AgentConfig{FailsafeTimeout: 60 * time.Second, AudioOutput: true}
	if failsafe != nil {
		cfg.FailsafeTimeout = *failsafe
	}
	if audioOutput != nil {
		cfg.AudioOutput = *audioOutput
	}
	return cfg, nil
}

// DecisionConfig describes the decision service. When WebhookURL is empty
// and Ark credentials are present, the embedded engine serves decisions
// instead.
type DecisionConfig struct {
	WebhookURL     string
	RequestTimeout time.Duration

	// Ark/eino settings for the embedded engine.
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// WebhookEnabled reports whether a remote decision endpoint is configured.
func (c DecisionConfig) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

// EngineEnabled reports whether the embedded engine has usable credentials.
func (c DecisionConfig) EngineEnabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the eino chat model backing the embedded engine.
func (c DecisionConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.EngineEnabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + DECISION_MODEL or AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadDecisionConfig() (DecisionConfig, error) {
	timeout, err := parseOptionalDurationEnv("DECISION_TIMEOUT")
	if err != nil {
		return DecisionConfig{}, err
	}
	requestTimeout := 12 * time.Second
	if timeout != nil {
		requestTimeout = *timeout
	}

	temperature, err := parseOptionalFloatEnv("DECISION_TEMPERATURE")
	if err != nil {
		return DecisionConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("DECISION_MAX_TOKENS")
	if err != nil {
		return DecisionConfig{}, err
	}

	return DecisionConfig{
		WebhookURL:     strings.TrimSpace(os.Getenv("DECISION_WEBHOOK_URL")),
		RequestTimeout: requestTimeout,
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("DECISION_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		MaxTokens:      maxTokens,
	}, nil
}

// VoiceConfig describes the transcription uplink.
type VoiceConfig struct {
	voicemodel.Config
	Enabled bool
}

func loadVoiceConfig() (VoiceConfig, error) {
	cfg := voicemodel.DefaultConfig()

	cfg.Endpoint = getEnvOrDefault("VOICE_ENDPOINT", cfg.Endpoint)
	cfg.AccessToken = strings.TrimSpace(os.Getenv("VOICE_ACCESS_TOKEN"))

	if rate, err := parseOptionalIntEnv("VOICE_SAMPLE_RATE"); err != nil {
		return VoiceConfig{}, err
	} else if rate != nil {
		cfg.SampleRate = *rate
	}

	if conf, err := parseOptionalFloatEnv("VOICE_END_OF_TURN_CONFIDENCE"); err != nil {
		return VoiceConfig{}, err
	} else if conf != nil {
		cfg.EndOfTurnConfidence = *conf
	}

	if d, err := parseOptionalDurationEnv("VOICE_MIN_END_OF_TURN_SILENCE"); err != nil {
		return VoiceConfig{}, err
	} else if d != nil {
		cfg.MinEndOfTurnSilence = *d
	}

	if d, err := parseOptionalDurationEnv("VOICE_MAX_TURN_SILENCE"); err != nil {
		return VoiceConfig{}, err
	} else if d != nil {
		cfg.MaxTurnSilence = *d
	}

	if d, err := parseOptionalDurationEnv("VOICE_CHUNK_DURATION"); err != nil {
		return VoiceConfig{}, err
	} else if d != nil {
		cfg.ChunkDuration = *d
	}

	if gain, err := parseOptionalFloatEnv("VOICE_LEVEL_GAIN"); err != nil {
		return VoiceConfig{}, err
	} else if gain != nil {
		cfg.LevelGain = *gain
	}

	if words := parseListEnv("VOICE_WORD_BOOST"); words != nil {
		cfg.WordBoost = words
	}
	if words := parseListEnv("VOICE_FILTER_REMOVAL"); words != nil {
		cfg.FilterRemoval = words
	}

	return VoiceConfig{Config: cfg, Enabled: cfg.AccessToken != ""}, nil
}

// parseListEnv splits a comma-separated env value, dropping blanks. Returns
// nil when the variable is unset or empty so defaults survive.
func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// TranscriptConfig is presentation policy for floating captions. The
// thresholds are product behavior, not correctness.
type TranscriptConfig struct {
	RecentWindow time.Duration
	CaptionTTL   time.Duration
}

func loadTranscriptConfig() (TranscriptConfig, error) {
	cfg := TranscriptConfig{
		RecentWindow: time.Second,
		CaptionTTL:   6 * time.Second,
	}

	if d, err := parseOptionalDurationEnv("TRANSCRIPT_RECENT_WINDOW"); err != nil {
		return TranscriptConfig{}, err
	} else if d != nil {
		cfg.RecentWindow = *d
	}

	if d, err := parseOptionalDurationEnv("TRANSCRIPT_CAPTION_TTL"); err != nil {
		return TranscriptConfig{}, err
	} else if d != nil {
		cfg.CaptionTTL = *d
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalBoolEnv(key string) (*bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseBool(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
