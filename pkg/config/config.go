// Package config loads the adapter configuration: defaults, then an optional
// YAML file, then FEISHUCLAW_* environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sipeed/feishuclaw/pkg/domain"
	"github.com/sipeed/feishuclaw/pkg/domain/security"
	"github.com/sipeed/feishuclaw/pkg/listener"
	"github.com/sipeed/feishuclaw/pkg/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEISHUCLAW_"

// Domain selects the platform region.
type Domain string

const (
	DomainFeishu Domain = "feishu"
	DomainLark   Domain = "lark"
)

// BaseURL returns the open-platform base URL of the region.
func (d Domain) BaseURL() string {
	if d == DomainLark {
		return "https://open.larksuite.com"
	}
	return "https://open.feishu.cn"
}

// ConnectionMode selects the inbound transport.
type ConnectionMode string

const (
	ModeWebSocket ConnectionMode = "websocket"
	ModeWebhook   ConnectionMode = "webhook"
)

type Config struct {
	Feishu   FeishuConfig    `yaml:"feishu" envPrefix:"FEISHU_"`
	Listener listener.Config `yaml:"listener" envPrefix:"LISTENER_"`
	Channel  ChannelConfig   `yaml:"channel" envPrefix:"CHANNEL_"`
	Log      logger.Config   `yaml:"log" envPrefix:"LOG_"`
	Monitor  MonitorConfig   `yaml:"monitor" envPrefix:"MONITOR_"`
}

// FeishuConfig holds app credentials, transport selection and access policy.
type FeishuConfig struct {
	AppID     string `yaml:"app_id" env:"APP_ID" validate:"required"`
	AppSecret string `yaml:"app_secret" env:"APP_SECRET" validate:"required"`

	Domain         Domain         `yaml:"domain" env:"DOMAIN" validate:"oneof=feishu lark"`
	ConnectionMode ConnectionMode `yaml:"connection_mode" env:"CONNECTION_MODE" validate:"oneof=websocket webhook"`

	// AllowedUsers is the historical DM allowlist; AllowFrom replaces it when set.
	AllowedUsers        []string             `yaml:"allowed_users" env:"ALLOWED_USERS" envSeparator:","`
	AllowFrom           []string             `yaml:"allow_from" env:"ALLOW_FROM" envSeparator:","`
	DMPolicy            security.DmPolicy    `yaml:"dm_policy" env:"DM_POLICY" validate:"omitempty,oneof=pairing open deny"`
	GroupPolicy         security.GroupPolicy `yaml:"group_policy" env:"GROUP_POLICY" validate:"omitempty,oneof=allowlist open deny"`
	GroupAllowFrom      []string             `yaml:"group_allow_from" env:"GROUP_ALLOW_FROM" envSeparator:","`
	GroupRequireMention bool                 `yaml:"group_require_mention" env:"GROUP_REQUIRE_MENTION"`

	EncryptKey        string `yaml:"encrypt_key" env:"ENCRYPT_KEY"`
	VerificationToken string `yaml:"verification_token" env:"VERIFICATION_TOKEN"`
	WebhookPort       int    `yaml:"webhook_port" env:"WEBHOOK_PORT" validate:"min=1,max=65535"`
	WebhookPath       string `yaml:"webhook_path" env:"WEBHOOK_PATH" validate:"startswith=/"`
}

// ChannelConfig tunes the listen pipeline in front of the caller.
type ChannelConfig struct {
	QueueSize     int           `yaml:"queue_size" env:"QUEUE_SIZE" validate:"min=1"`
	DedupWindow   time.Duration `yaml:"dedup_window" env:"DEDUP_WINDOW" validate:"min=0"`
	StripMentions bool          `yaml:"strip_mentions" env:"STRIP_MENTIONS"`
}

// MonitorConfig configures the optional health and event API.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Host    string `yaml:"host" env:"HOST"`
	Port    int    `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	APIKey  string `yaml:"api_key" env:"API_KEY"`
}

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		Feishu: FeishuConfig{
			Domain:              DomainFeishu,
			ConnectionMode:      ModeWebSocket,
			GroupRequireMention: true,
			WebhookPort:         8081,
			WebhookPath:         "/",
		},
		Listener: listener.DefaultConfig(),
		Channel: ChannelConfig{
			QueueSize:   256,
			DedupWindow: 60 * time.Second,
		},
		Log: logger.Config{Level: "info", Format: "text"},
		Monitor: MonitorConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
	}
}

// Load builds the configuration. path may be empty or point to a missing
// file, in which case only defaults and the environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.InfoCF("config", "Config file not found, using defaults", map[string]interface{}{
				"path": path,
			})
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, domain.NewError(domain.CodeInvalidConfig, path, err)
			}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, domain.NewError(domain.CodeInvalidConfig, "environment", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.InfoCF("config", "Configuration loaded", map[string]interface{}{
		"app_id":          cfg.Feishu.AppID,
		"domain":          string(cfg.Feishu.Domain),
		"connection_mode": string(cfg.Feishu.ConnectionMode),
		"dm_policy":       cfg.EffectiveDMPolicy().String(),
		"group_policy":    cfg.EffectiveGroupPolicy().String(),
	})
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return domain.NewError(domain.CodeInvalidConfig, "", err)
	}
	return nil
}

// DMAllowlist returns allow_from when it is set, otherwise allowed_users.
func (c *Config) DMAllowlist() []string {
	if c.Feishu.AllowFrom != nil {
		return c.Feishu.AllowFrom
	}
	return c.Feishu.AllowedUsers
}

// EffectiveDMPolicy returns the explicit DM policy or derives one from the allowlist.
func (c *Config) EffectiveDMPolicy() security.DmPolicy {
	if c.Feishu.DMPolicy != "" {
		return c.Feishu.DMPolicy
	}
	return security.DmPolicyFromAllowlist(c.DMAllowlist())
}

// EffectiveGroupPolicy returns the explicit group policy, defaulting to open.
func (c *Config) EffectiveGroupPolicy() security.GroupPolicy {
	if c.Feishu.GroupPolicy != "" {
		return c.Feishu.GroupPolicy
	}
	return security.GroupOpen
}

// GuardConfig assembles the security guard settings.
func (c *Config) GuardConfig() security.GuardConfig {
	return security.GuardConfig{
		DMAllowlist:    c.DMAllowlist(),
		DMPolicy:       c.EffectiveDMPolicy(),
		GroupAllowlist: c.Feishu.GroupAllowFrom,
		GroupPolicy:    c.EffectiveGroupPolicy(),
	}
}
