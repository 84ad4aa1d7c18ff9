package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Server        ServerConfig        `mapstructure:"server"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Session       SessionConfig       `mapstructure:"session"`
	Context       ContextConfig       `mapstructure:"context"`
	Retrieval     RetrievalConfig     `mapstructure:"retrieval"`
	Intent        IntentConfig        `mapstructure:"intent"`
	Resilience    ResilienceConfig    `mapstructure:"resilience"`
	Webhook       WebhookConfig       `mapstructure:"webhook"`
	Channels      ChannelsConfig      `mapstructure:"channels"`
	Languages     LanguageConfig      `mapstructure:"languages"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Tenants       []TenantConfig      `mapstructure:"tenants"`
}

type TenantConfig struct {
	ID              string                `mapstructure:"id"`
	Name            string                `mapstructure:"name"`
	Industry        string                `mapstructure:"industry"`
	Description     string                `mapstructure:"description"`
	CorpusLanguages []string              `mapstructure:"corpus_languages"`
	Inventory       []InventoryItemConfig `mapstructure:"inventory"`
	Documents       []DocumentConfig      `mapstructure:"documents"`
}

type DocumentConfig struct {
	Content string `mapstructure:"content"`
	Source  string `mapstructure:"source"`
}

type InventoryItemConfig struct {
	SKU       string  `mapstructure:"sku"`
	Name      string  `mapstructure:"name"`
	Price     float64 `mapstructure:"price"`
	Currency  string  `mapstructure:"currency"`
	Available int     `mapstructure:"available"`
	Unit      string  `mapstructure:"unit"`
}

type ServerConfig struct {
	Addr              string `mapstructure:"addr"`
	ReadTimeoutMS     int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS    int    `mapstructure:"write_timeout_ms"`
	ShutdownTimeoutMS int    `mapstructure:"shutdown_timeout_ms"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	LLM VendorConfig `mapstructure:"llm"`
}

type SessionConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

type ContextConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

type RetrievalConfig struct {
	Limit          int     `mapstructure:"limit"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

type IntentConfig struct {
	TimeoutMS     int `mapstructure:"timeout_ms"`
	HistoryWindow int `mapstructure:"history_window"`
}

type ResilienceConfig struct {
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts"`
	RetryBaseDelayMS int     `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMS  int     `mapstructure:"retry_max_delay_ms"`
	RetryJitter      float64 `mapstructure:"retry_jitter"`
	CircuitThreshold int     `mapstructure:"circuit_threshold"`
	CircuitCooldown  int     `mapstructure:"circuit_cooldown_ms"`
}

type WebhookConfig struct {
	URL         string `mapstructure:"url"`
	Secret      string `mapstructure:"secret"`
	TimeoutMS   int    `mapstructure:"timeout_ms"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	BaseDelayMS int    `mapstructure:"base_delay_ms"`
	MaxDelayMS  int    `mapstructure:"max_delay_ms"`
	Workers     int    `mapstructure:"workers"`
	QueueSize   int    `mapstructure:"queue_size"`
}

type ChannelConfig struct {
	Adapter  string         `mapstructure:"adapter"`
	Settings map[string]any `mapstructure:"settings"`
}

type ChannelsConfig struct {
	Relay map[string]ChannelConfig `mapstructure:"relay"`
}

type LanguageConfig struct {
	Default string `mapstructure:"default"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type ObservabilityConfig struct {
	MetricsPath string `mapstructure:"metrics_path"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_ms", 10000)
	v.SetDefault("server.write_timeout_ms", 30000)
	v.SetDefault("server.shutdown_timeout_ms", 10000)
	v.SetDefault("session.max_turns", 50)
	v.SetDefault("context.max_history", 12)
	v.SetDefault("retrieval.limit", 8)
	v.SetDefault("retrieval.score_threshold", 0.35)
	v.SetDefault("intent.timeout_ms", 3000)
	v.SetDefault("intent.history_window", 6)
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_base_delay_ms", 200)
	v.SetDefault("resilience.retry_max_delay_ms", 5000)
	v.SetDefault("resilience.retry_jitter", 0.2)
	v.SetDefault("resilience.circuit_threshold", 3)
	v.SetDefault("resilience.circuit_cooldown_ms", 30000)
	v.SetDefault("webhook.timeout_ms", 10000)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.base_delay_ms", 2000)
	v.SetDefault("webhook.max_delay_ms", 30000)
	v.SetDefault("webhook.workers", 2)
	v.SetDefault("webhook.queue_size", 64)
	v.SetDefault("languages.default", "en")
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("observability.metrics_path", "")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	for name, ch := range c.Channels.Relay {
		if strings.TrimSpace(ch.Adapter) == "" {
			return fmt.Errorf("channels.relay.%s.adapter is required", name)
		}
	}
	for i, t := range c.Tenants {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("tenants[%d].id is required", i)
		}
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	for name, ch := range cfg.Channels.Relay {
		ch.Settings = expandSettings(ch.Settings)
		cfg.Channels.Relay[name] = ch
	}
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
