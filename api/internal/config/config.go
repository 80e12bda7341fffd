package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sipnread/api/internal/llm"
)

type Config struct {
	Port        string        `yaml:"port"`
	DatabaseURL string        `yaml:"database_url"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	FlowTimeout time.Duration `yaml:"flow_timeout"`

	// service account JSON for storage/speech; empty means application default credentials
	CredentialsFile string `yaml:"credentials_file"`

	Gemini   Gemini   `yaml:"gemini"`
	Storage  Storage  `yaml:"storage"`
	Speech   Speech   `yaml:"speech"`
	Auth     Auth     `yaml:"auth"`
	Telegram Telegram `yaml:"telegram"`
	Pricing  Pricing  `yaml:"pricing"`
}

type Gemini struct {
	APIKey      string              `yaml:"api_key"`
	Model       string              `yaml:"model"`
	Temperature *float32            `yaml:"temperature"`
	Safety      []llm.SafetySetting `yaml:"safety"`
}

type Storage struct {
	Bucket string `yaml:"bucket"`
}

type Speech struct {
	Enabled      bool   `yaml:"enabled"`
	LanguageCode string `yaml:"language_code"`
	// the client recognizes speech itself; no server-side transcription
	LocalDictation bool `yaml:"local_dictation"`
}

type Auth struct {
	Audience string `yaml:"audience"`
}

type Telegram struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Pricing struct {
	PriceCents int64  `yaml:"price_cents"`
	Currency   string `yaml:"currency"`
}

func defaults() *Config {
	return &Config{
		Port:        "8000",
		LogLevel:    "info",
		LogFormat:   "json",
		FlowTimeout: 180 * time.Second,
		Gemini:      Gemini{Model: "gemini-2.5-flash"},
		Speech:      Speech{LanguageCode: "en-US"},
		Pricing:     Pricing{PriceCents: 1500, Currency: "USD"},
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads defaults, then the YAML file at path (if any), then env overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.CredentialsFile = getEnv("GOOGLE_APPLICATION_CREDENTIALS", c.CredentialsFile)

	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = getEnv("GEMINI_MODEL", c.Gemini.Model)
	c.Storage.Bucket = getEnv("SIPNREAD_BUCKET", c.Storage.Bucket)
	c.Speech.LanguageCode = getEnv("SPEECH_LANGUAGE", c.Speech.LanguageCode)
	c.Auth.Audience = getEnv("SIPNREAD_AUTH_AUDIENCE", c.Auth.Audience)
	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.Pricing.Currency = getEnv("SIPNREAD_CURRENCY", c.Pricing.Currency)

	var errs []error
	if v := os.Getenv("SIPNREAD_FLOW_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("SIPNREAD_FLOW_TIMEOUT", err))
		c.FlowTimeout = d
	}
	if v := os.Getenv("GEMINI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		errs = append(errs, envErr("GEMINI_TEMPERATURE", err))
		t := float32(f)
		c.Gemini.Temperature = &t
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		errs = append(errs, envErr("TELEGRAM_CHAT_ID", err))
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("SIPNREAD_PRICE_CENTS"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		errs = append(errs, envErr("SIPNREAD_PRICE_CENTS", err))
		c.Pricing.PriceCents = p
	}
	if v := os.Getenv("SPEECH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("SPEECH_ENABLED", err))
		c.Speech.Enabled = b
	}
	if v := os.Getenv("SIPNREAD_LOCAL_DICTATION"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("SIPNREAD_LOCAL_DICTATION", err))
		c.Speech.LocalDictation = b
	}
	return errors.Join(errs...)
}

func envErr(k string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("env %s: %w", k, err)
}

// Validate checks what `serve` needs.
func (c *Config) Validate() error {
	var errs []error
	need := func(v, name string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("missing required %s", name))
		}
	}
	need(c.DatabaseURL, "database_url (DATABASE_URL)")
	need(c.Gemini.APIKey, "gemini.api_key (GEMINI_API_KEY)")
	need(c.Storage.Bucket, "storage.bucket (SIPNREAD_BUCKET)")
	need(c.Auth.Audience, "auth.audience (SIPNREAD_AUTH_AUDIENCE)")

	if c.Pricing.PriceCents < 0 {
		errs = append(errs, errors.New("pricing.price_cents must not be negative"))
	}
	if t := c.Gemini.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("gemini.temperature %v out of range 0-2", *t))
	}
	if c.FlowTimeout <= 0 {
		errs = append(errs, errors.New("flow_timeout must be positive"))
	}
	for i, s := range c.Gemini.Safety {
		if !s.Category.Valid() {
			errs = append(errs, fmt.Errorf("gemini.safety[%d]: unknown category %q", i, s.Category))
		}
		if !s.Threshold.Valid() {
			errs = append(errs, fmt.Errorf("gemini.safety[%d]: unknown threshold %q", i, s.Threshold))
		}
	}
	return errors.Join(errs...)
}
