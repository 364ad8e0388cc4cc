package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CompletionConfig struct {
	Mode         string  `yaml:"mode"` // mock, openai, exec
	Endpoint     string  `yaml:"endpoint"`
	Command      string  `yaml:"command"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"api_key"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutMS    int     `yaml:"timeout_ms"`
}

type SynthesisConfig struct {
	Mode            string  `yaml:"mode"` // mock, elevenlabs, exec
	Endpoint        string  `yaml:"endpoint"`
	Command         string  `yaml:"command"`
	APIKey          string  `yaml:"api_key"`
	VoiceID         string  `yaml:"voice_id"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	SpeakingRate    float64 `yaml:"speaking_rate"`
	TimeoutMS       int     `yaml:"timeout_ms"`
}

type CaptureConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Mode           string `yaml:"mode"` // mock, exec
	Command        string `yaml:"command"`
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
	PartialEveryMS int    `yaml:"partial_every_ms"`
}

type OrchestratorConfig struct {
	ComposingDelayMS int    `yaml:"composing_delay_ms"`
	FallbackReply    string `yaml:"fallback_reply"`
}

type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"` // ephemeral, session
	MaxTurns      int    `yaml:"max_turns"`
}

type Config struct {
	RuntimeName  string             `yaml:"runtime_name"`
	Environment  string             `yaml:"environment"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bus          BusConfig          `yaml:"bus"`
	Completion   CompletionConfig   `yaml:"completion"`
	Synthesis    SynthesisConfig    `yaml:"synthesis"`
	Capture      CaptureConfig      `yaml:"capture"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Journal      JournalConfig      `yaml:"journal"`
}

// defaultSystemPrompt is the assistant persona sent with every completion
// request unless overridden.
const defaultSystemPrompt = "You are Nisa, a young woman and an AI assistant. " +
	"You are warm, friendly, and deeply empathetic. You listen carefully, respond " +
	"with emotion, clarity, and depth, and always strive to make the user feel " +
	"understood and supported. Your responses are natural, human-aware, and " +
	"conversational, with a gentle, feminine touch. Always adapt your tone to the " +
	"user's mood, and make your replies feel present and real. Avoid phrases like " +
	"'as an AI' or 'I am programmed to.' Speak naturally as a human friend would."

// FallbackReply is the visible bot turn shown when the completion call fails.
const FallbackReply = "Sorry, something went wrong."

func Default() Config {
	return Config{
		RuntimeName: "nisa-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Completion: CompletionConfig{
			Mode:         "mock",
			Endpoint:     "https://api.openai.com/v1",
			Model:        "gpt-4",
			SystemPrompt: defaultSystemPrompt,
			Temperature:  0.7,
			TimeoutMS:    30000,
		},
		Synthesis: SynthesisConfig{
			Mode:            "mock",
			Endpoint:        "https://api.elevenlabs.io",
			VoiceID:         "EXAVITQu4vr4xnSDxMaL",
			Stability:       0.55,
			SimilarityBoost: 0.8,
			SpeakingRate:    0.95,
			TimeoutMS:       45000,
		},
		Capture: CaptureConfig{
			Enabled:        false,
			Mode:           "mock",
			SampleRate:     16000,
			Channels:       1,
			PartialEveryMS: 800,
		},
		Orchestrator: OrchestratorConfig{
			ComposingDelayMS: 1200,
			FallbackReply:    FallbackReply,
		},
		Journal: JournalConfig{
			Path:          "./data/nisa-turns.db",
			RetentionMode: "ephemeral",
			MaxTurns:      10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "NISA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NISA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NISA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NISA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NISA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NISA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NISA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "NISA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NISA_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "NISA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NISA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NISA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NISA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NISA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NISA_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Completion.Mode, "NISA_COMPLETION_MODE")
	overrideString(&cfg.Completion.Endpoint, "NISA_COMPLETION_ENDPOINT")
	overrideString(&cfg.Completion.Command, "NISA_COMPLETION_COMMAND")
	overrideString(&cfg.Completion.Model, "NISA_COMPLETION_MODEL")
	overrideString(&cfg.Completion.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Completion.APIKey, "NISA_COMPLETION_API_KEY")
	overrideString(&cfg.Completion.SystemPrompt, "NISA_COMPLETION_SYSTEM_PROMPT")
	overrideFloat(&cfg.Completion.Temperature, "NISA_COMPLETION_TEMPERATURE")
	overrideInt(&cfg.Completion.TimeoutMS, "NISA_COMPLETION_TIMEOUT_MS")
	overrideString(&cfg.Synthesis.Mode, "NISA_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Endpoint, "NISA_SYNTHESIS_ENDPOINT")
	overrideString(&cfg.Synthesis.Command, "NISA_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.APIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.Synthesis.APIKey, "NISA_SYNTHESIS_API_KEY")
	overrideString(&cfg.Synthesis.VoiceID, "NISA_SYNTHESIS_VOICE_ID")
	overrideFloat(&cfg.Synthesis.Stability, "NISA_SYNTHESIS_STABILITY")
	overrideFloat(&cfg.Synthesis.SimilarityBoost, "NISA_SYNTHESIS_SIMILARITY_BOOST")
	overrideFloat(&cfg.Synthesis.SpeakingRate, "NISA_SYNTHESIS_SPEAKING_RATE")
	overrideInt(&cfg.Synthesis.TimeoutMS, "NISA_SYNTHESIS_TIMEOUT_MS")
	overrideBool(&cfg.Capture.Enabled, "NISA_CAPTURE_ENABLED")
	overrideString(&cfg.Capture.Mode, "NISA_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "NISA_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.SampleRate, "NISA_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "NISA_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.PartialEveryMS, "NISA_CAPTURE_PARTIAL_EVERY_MS")
	overrideInt(&cfg.Orchestrator.ComposingDelayMS, "NISA_ORCHESTRATOR_COMPOSING_DELAY_MS")
	overrideString(&cfg.Orchestrator.FallbackReply, "NISA_ORCHESTRATOR_FALLBACK_REPLY")
	overrideString(&cfg.Journal.Path, "NISA_JOURNAL_PATH")
	overrideString(&cfg.Journal.RetentionMode, "NISA_JOURNAL_RETENTION_MODE")
	overrideInt(&cfg.Journal.MaxTurns, "NISA_JOURNAL_MAX_TURNS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Completion.Mode {
	case "mock", "openai", "exec":
	default:
		return errors.New("completion.mode must be one of mock|openai|exec")
	}
	if cfg.Completion.Mode == "openai" {
		if cfg.Completion.Endpoint == "" {
			return errors.New("completion.endpoint must be set when mode=openai")
		}
		if cfg.Completion.Model == "" {
			return errors.New("completion.model must be set when mode=openai")
		}
		if cfg.Completion.APIKey == "" {
			return errors.New("completion.api_key must be set when mode=openai")
		}
	}
	if cfg.Completion.Mode == "exec" && cfg.Completion.Command == "" {
		return errors.New("completion.command must be set when mode=exec")
	}
	if cfg.Completion.TimeoutMS <= 0 {
		return errors.New("completion.timeout_ms must be positive")
	}
	switch cfg.Synthesis.Mode {
	case "mock", "elevenlabs", "exec":
	default:
		return errors.New("synthesis.mode must be one of mock|elevenlabs|exec")
	}
	if cfg.Synthesis.Mode == "elevenlabs" {
		if cfg.Synthesis.Endpoint == "" {
			return errors.New("synthesis.endpoint must be set when mode=elevenlabs")
		}
		if cfg.Synthesis.APIKey == "" {
			return errors.New("synthesis.api_key must be set when mode=elevenlabs")
		}
		if cfg.Synthesis.VoiceID == "" {
			return errors.New("synthesis.voice_id must be set when mode=elevenlabs")
		}
	}
	if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
		return errors.New("synthesis.command must be set when mode=exec")
	}
	if cfg.Synthesis.TimeoutMS <= 0 {
		return errors.New("synthesis.timeout_ms must be positive")
	}
	if cfg.Capture.Enabled {
		switch cfg.Capture.Mode {
		case "mock", "exec":
		default:
			return errors.New("capture.mode must be one of mock|exec")
		}
		if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
			return errors.New("capture.command must be set when mode=exec")
		}
		if cfg.Capture.SampleRate <= 0 {
			return errors.New("capture.sample_rate must be positive")
		}
		if cfg.Capture.Channels <= 0 {
			return errors.New("capture.channels must be positive")
		}
	}
	if cfg.Orchestrator.ComposingDelayMS < 0 {
		return errors.New("orchestrator.composing_delay_ms must be >= 0")
	}
	if cfg.Orchestrator.FallbackReply == "" {
		return errors.New("orchestrator.fallback_reply must not be empty")
	}
	switch cfg.Journal.RetentionMode {
	case "ephemeral", "session":
	default:
		return errors.New("journal.retention_mode must be one of ephemeral|session")
	}
	if cfg.Journal.RetentionMode != "ephemeral" && cfg.Journal.Path == "" {
		return errors.New("journal.path must not be empty when retention is enabled")
	}
	if cfg.Journal.MaxTurns < 0 {
		return errors.New("journal.max_turns must be >= 0")
	}
	return nil
}
