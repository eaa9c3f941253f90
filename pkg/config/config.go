package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// BackendConfig describes one chat-completion backend.
type BackendConfig struct {
	BaseURL string `json:"base_url" env:"BASE_URL"`
	APIKey  string `json:"api_key" env:"API_KEY"`
	Model   string `json:"model" env:"MODEL"`
}

type BackendsConfig struct {
	// Primary is the low-latency, usually locally hosted backend.
	Primary BackendConfig `json:"primary" envPrefix:"PRIMARY_"`
	// Secondary is the slower, more capable backend used for fallback
	// and for all scoring. Family selects the SDK: "openai" or "anthropic".
	Secondary       BackendConfig `json:"secondary" envPrefix:"SECONDARY_"`
	SecondaryFamily string        `json:"secondary_family" env:"SECONDARY_FAMILY"`
	// ScoreRPS paces scoring requests against the secondary backend.
	ScoreRPS float64 `json:"score_rps" env:"SCORE_RPS"`
}

type STTConfig struct {
	APIKey  string `json:"api_key" env:"STT_API_KEY"`
	BaseURL string `json:"base_url" env:"STT_BASE_URL"`
	Model   string `json:"model" env:"STT_MODEL"`
}

type TTSConfig struct {
	BaseURL      string `json:"base_url" env:"TTS_BASE_URL"`
	Model        string `json:"model" env:"TTS_MODEL"`
	DefaultVoice string `json:"default_voice" env:"TTS_DEFAULT_VOICE"`
}

type VoiceConfig struct {
	STT STTConfig `json:"stt"`
	TTS TTSConfig `json:"tts"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"GATEWAY_HOST"`
	Port int    `json:"port" env:"GATEWAY_PORT"`
}

// ConversationConfig holds turn-taking policy knobs.
type ConversationConfig struct {
	// MaxAgentTurns bounds consecutive agent turns since the last user
	// message in normal mode. Agent-only conversations ignore it.
	MaxAgentTurns int `json:"max_agent_turns" env:"MAX_AGENT_TURNS"`
	// ContinueThreshold is the minimum score (0-10) a continuation
	// candidate needs in normal mode.
	ContinueThreshold float64 `json:"continue_threshold" env:"CONTINUE_THRESHOLD"`
	// PlaybackPollMS is the interruption poll interval while waiting on
	// remote playback.
	PlaybackPollMS int `json:"playback_poll_ms" env:"PLAYBACK_POLL_MS"`
	AgentsFile     string `json:"agents_file" env:"AGENTS_FILE"`
}

type LogConfig struct {
	Level string `json:"level" env:"LOG_LEVEL"`
	File  string `json:"file" env:"LOG_FILE"`
}

type StoreConfig struct {
	// TranscriptDB is the sqlite file for the durable transcript log.
	// Empty disables persistence.
	TranscriptDB string `json:"transcript_db" env:"TRANSCRIPT_DB"`
}

type Config struct {
	Backends     BackendsConfig     `json:"backends" envPrefix:"PARLEY_"`
	Voice        VoiceConfig        `json:"voice" envPrefix:"PARLEY_"`
	Gateway      GatewayConfig      `json:"gateway" envPrefix:"PARLEY_"`
	Conversation ConversationConfig `json:"conversation" envPrefix:"PARLEY_"`
	Log          LogConfig          `json:"log" envPrefix:"PARLEY_"`
	Store        StoreConfig        `json:"store" envPrefix:"PARLEY_"`
}

// Load reads the JSON config at path (missing file is not an error),
// applies PARLEY_* environment overrides, then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}
