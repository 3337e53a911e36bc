package app

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/llm"
)

const envPrefix = "MCPCHAT"

// Settings is the resolved chat client configuration.
type Settings struct {
	Model   ModelSettings   `mapstructure:"model"`
	Chat    ChatSettings    `mapstructure:"chat"`
	Servers ServersSettings `mapstructure:"servers"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	History HistorySettings `mapstructure:"history"`
}

type ModelSettings struct {
	Provider  string `mapstructure:"provider"`
	Name      string `mapstructure:"name"`
	MaxTokens int    `mapstructure:"maxTokens"`
	APIKey    string `mapstructure:"apiKey"`
	APIKeyEnv string `mapstructure:"apiKeyEnv"`
	BaseURL   string `mapstructure:"baseURL"`
	System    string `mapstructure:"system"`
}

type ChatSettings struct {
	ResourceScheme string `mapstructure:"resourceScheme"`
	MaxRounds      int    `mapstructure:"maxRounds"`
	Prompt         string `mapstructure:"prompt"`
}

type ServersSettings struct {
	Config string `mapstructure:"config"`
	Watch  bool   `mapstructure:"watch"`
}

type MetricsSettings struct {
	ListenAddress string `mapstructure:"listenAddress"`
}

type HistorySettings struct {
	Path string `mapstructure:"path"`
}

// LLMConfig maps the model settings onto the adapter config.
func (s Settings) LLMConfig() llm.Config {
	return llm.Config{
		Provider:  s.Model.Provider,
		Model:     s.Model.Name,
		MaxTokens: s.Model.MaxTokens,
		APIKey:    s.Model.APIKey,
		APIKeyEnv: s.Model.APIKeyEnv,
		BaseURL:   s.Model.BaseURL,
		System:    s.Model.System,
	}
}

// flagKeys binds CLI flag names to settings keys.
var flagKeys = map[string]string{
	"config":          "servers.config",
	"watch":           "servers.watch",
	"metrics-addr":    "metrics.listenAddress",
	"history-db":      "history.path",
	"model":           "model.name",
	"provider":        "model.provider",
	"max-tokens":      "model.maxTokens",
	"max-rounds":      "chat.maxRounds",
	"resource-scheme": "chat.resourceScheme",
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setSettingsDefaults(v)
	return v
}

func setSettingsDefaults(v *viper.Viper) {
	v.SetDefault("model.provider", domain.DefaultModelProvider)
	v.SetDefault("model.name", "")
	v.SetDefault("model.maxTokens", domain.DefaultMaxTokens)
	v.SetDefault("model.apiKey", "")
	v.SetDefault("model.apiKeyEnv", "")
	v.SetDefault("model.baseURL", "")
	v.SetDefault("model.system", "")
	v.SetDefault("chat.resourceScheme", domain.DefaultResourceScheme)
	v.SetDefault("chat.maxRounds", 0)
	v.SetDefault("chat.prompt", domain.DefaultInputPrompt)
	v.SetDefault("servers.config", domain.DefaultProviderConfigPath)
	v.SetDefault("servers.watch", false)
	v.SetDefault("metrics.listenAddress", "")
	v.SetDefault("history.path", "")
}

// LoadSettings merges defaults, the optional settings file, MCPCHAT_*
// environment variables and explicitly set flags, in increasing priority.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	v := newSettingsViper()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	normalizeSettings(&settings)
	return settings, nil
}

func normalizeSettings(s *Settings) {
	s.Model.Provider = strings.ToLower(strings.TrimSpace(s.Model.Provider))
	if s.Model.Provider == "" {
		s.Model.Provider = domain.DefaultModelProvider
	}
	if s.Model.Name == "" && s.Model.Provider == llm.ProviderAnthropic {
		s.Model.Name = domain.DefaultModelName
	}
	if s.Model.MaxTokens <= 0 {
		s.Model.MaxTokens = domain.DefaultMaxTokens
	}
	s.Chat.ResourceScheme = strings.TrimSuffix(strings.TrimSpace(s.Chat.ResourceScheme), "://")
	if s.Chat.ResourceScheme == "" {
		s.Chat.ResourceScheme = domain.DefaultResourceScheme
	}
	if s.Chat.MaxRounds < 0 {
		s.Chat.MaxRounds = 0
	}
	if s.Chat.Prompt == "" {
		s.Chat.Prompt = domain.DefaultInputPrompt
	}
	if strings.TrimSpace(s.Servers.Config) == "" {
		s.Servers.Config = domain.DefaultProviderConfigPath
	}
}
