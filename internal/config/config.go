// Package config provides the configuration schema and loader for the
// voxbridge call bridge.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader]; string values may reference
// environment variables as ${VAR}.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	LiveKit      LiveKitConfig      `yaml:"livekit"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Conversation ConversationConfig `yaml:"conversation"`
	Artifacts    ArtifactsConfig    `yaml:"artifacts"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// PublicHost is the externally reachable host name Twilio uses to fetch
	// TwiML and open the media stream websocket (e.g., "voice.example.com").
	PublicHost string `yaml:"public_host"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// TwilioConfig holds the Twilio account credentials and caller ID.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// LiveKitConfig holds the media room server endpoint and API key pair.
type LiveKitConfig struct {
	// URL is the server base URL (e.g., "https://livekit.example.com").
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// ProvidersConfig selects and configures the pipeline providers.
type ProvidersConfig struct {
	STT STTConfig `yaml:"stt"`
	LLM LLMConfig `yaml:"llm"`
	TTS TTSConfig `yaml:"tts"`

	// TimeoutSeconds bounds each individual provider call. Zero selects
	// the built-in default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// STTConfig configures the speech-to-text provider.
type STTConfig struct {
	// Name selects the provider implementation ("deepgram").
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// LLMConfig configures the response generation provider.
type LLMConfig struct {
	// Name selects the provider implementation ("groq", "openai").
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// TTSConfig configures the speech synthesis provider.
type TTSConfig struct {
	// Name selects the provider implementation ("elevenlabs").
	Name            string  `yaml:"name"`
	APIKey          string  `yaml:"api_key"`
	VoiceID         string  `yaml:"voice_id"`
	Model           string  `yaml:"model"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

// ConversationConfig tunes the turn loop.
type ConversationConfig struct {
	// SystemPrompt overrides the built-in agent persona.
	SystemPrompt string `yaml:"system_prompt"`

	// MaxTurns bounds the per-call history (user and assistant messages).
	MaxTurns int `yaml:"max_turns"`

	// Greeting overrides the opening line spoken on every call.
	Greeting string `yaml:"greeting"`
}

// ArtifactsConfig controls conversation artifact output.
type ArtifactsConfig struct {
	// Dir is the directory transcripts are written into. Empty disables
	// artifacts.
	Dir string `yaml:"dir"`
}
