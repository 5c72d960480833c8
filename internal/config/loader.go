package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to catch typos before a call ever runs.
var ValidProviderNames = map[string][]string{
	"stt": {"deepgram"},
	"llm": {"groq", "openai"},
	"tts": {"elevenlabs"},
}

// Load reads the YAML configuration file at path, expands ${VAR} references
// from the environment, and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals. No
// environment expansion is applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.PublicHost == "" {
		errs = append(errs, errors.New("server.public_host is required (Twilio must reach this host)"))
	}

	if cfg.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("twilio.account_sid is required"))
	}
	if cfg.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("twilio.auth_token is required"))
	}
	if cfg.Twilio.FromNumber == "" {
		errs = append(errs, errors.New("twilio.from_number is required"))
	}

	if cfg.LiveKit.URL == "" {
		errs = append(errs, errors.New("livekit.url is required"))
	}
	if cfg.LiveKit.APIKey == "" || cfg.LiveKit.APISecret == "" {
		errs = append(errs, errors.New("livekit.api_key and livekit.api_secret are required"))
	}

	errs = append(errs, validateProviderName("stt", cfg.Providers.STT.Name)...)
	errs = append(errs, validateProviderName("llm", cfg.Providers.LLM.Name)...)
	errs = append(errs, validateProviderName("tts", cfg.Providers.TTS.Name)...)

	if cfg.Providers.STT.APIKey == "" {
		errs = append(errs, errors.New("providers.stt.api_key is required"))
	}
	if cfg.Providers.LLM.APIKey == "" {
		errs = append(errs, errors.New("providers.llm.api_key is required"))
	}
	if cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required"))
	}
	if cfg.Providers.TTS.VoiceID == "" {
		errs = append(errs, errors.New("providers.tts.voice_id is required"))
	}

	if t := cfg.Providers.LLM.Temperature; t < 0 || t > 2 {
		errs = append(errs, fmt.Errorf("providers.llm.temperature %.2f is out of range [0, 2]", t))
	}
	if cfg.Providers.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("providers.timeout_seconds %d must not be negative", cfg.Providers.TimeoutSeconds))
	}
	if cfg.Conversation.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_turns %d must not be negative", cfg.Conversation.MaxTurns))
	}

	return errors.Join(errs...)
}

// validateProviderName returns an error when name is non-empty and not a
// known provider for the given kind. An empty name is allowed here; missing
// mandatory sections surface through their API key checks instead.
func validateProviderName(kind, name string) []error {
	if name == "" {
		return nil
	}
	known := ValidProviderNames[kind]
	if slices.Contains(known, name) {
		return nil
	}
	return []error{fmt.Errorf("providers.%s.name %q is unknown; valid values: %v", kind, name, known)}
}
