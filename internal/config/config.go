package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultCommandPrefix = "!"
	DefaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	DefaultModel         = "llama-3.1-8b-instant"
	DefaultQuota         = 5
	DefaultWindowMinutes = 60
	DefaultAuditCapacity = 200
	DefaultSystemPrompt  = "Você é uma IA inteligente que responde em português."
)

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Discord DiscordConfig `toml:"discord"`
	Groq    GroqConfig    `toml:"groq"`
	Image   ImageConfig   `toml:"image"`
	Limits  LimitsConfig  `toml:"limits"`
	Chat    ChatConfig    `toml:"chat"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DiscordConfig struct {
	BotToken      string `toml:"bot_token"`
	CommandPrefix string `toml:"command_prefix"`
	AdminID       string `toml:"admin_id"`
}

type GroqConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float32 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

func (c GroqConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ImageConfig struct {
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type LimitsConfig struct {
	Quota         int `toml:"quota"`
	WindowMinutes int `toml:"window_minutes"`
	AuditCapacity int `toml:"audit_capacity"`
}

func (c LimitsConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

type ChatConfig struct {
	SystemPrompt string `toml:"system_prompt"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Discord: DiscordConfig{
			CommandPrefix: DefaultCommandPrefix,
		},
		Groq: GroqConfig{
			BaseURL:     DefaultGroqBaseURL,
			Model:       DefaultModel,
			Temperature: 0.7,
			MaxTokens:   800,
		},
		Limits: LimitsConfig{
			Quota:         DefaultQuota,
			WindowMinutes: DefaultWindowMinutes,
			AuditCapacity: DefaultAuditCapacity,
		},
		Chat: ChatConfig{
			SystemPrompt: DefaultSystemPrompt,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return applyEnv(cfg), nil
}

// applyEnv lets deployment secrets override the config file.
func applyEnv(cfg Config) Config {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Discord.BotToken = token
	}
	if key := os.Getenv("GROQ_API_KEY"); key != "" {
		cfg.Groq.APIKey = key
	}
	return cfg
}

func (c Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord bot_token is required (config or DISCORD_TOKEN)")
	}
	if c.Groq.APIKey == "" {
		return fmt.Errorf("groq api_key is required (config or GROQ_API_KEY)")
	}
	if c.Discord.AdminID == "" {
		return fmt.Errorf("discord admin_id is required")
	}
	if c.Limits.Quota < 0 {
		return fmt.Errorf("limits quota must not be negative")
	}
	if c.Limits.WindowMinutes <= 0 {
		return fmt.Errorf("limits window_minutes must be positive")
	}
	return nil
}
