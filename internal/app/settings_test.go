package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"mcpchat/internal/domain"
)

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("", nil)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultModelProvider, settings.Model.Provider)
	require.Equal(t, domain.DefaultModelName, settings.Model.Name)
	require.Equal(t, domain.DefaultMaxTokens, settings.Model.MaxTokens)
	require.Equal(t, domain.DefaultResourceScheme, settings.Chat.ResourceScheme)
	require.Equal(t, domain.DefaultInputPrompt, settings.Chat.Prompt)
	require.Equal(t, 0, settings.Chat.MaxRounds)
	require.Equal(t, domain.DefaultProviderConfigPath, settings.Servers.Config)
	require.False(t, settings.Servers.Watch)
	require.Empty(t, settings.Metrics.ListenAddress)
	require.Empty(t, settings.History.Path)
}

func TestLoadSettingsFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  provider: OpenAI
  name: gpt-4o-mini
  maxTokens: 512
chat:
  resourceScheme: "notes://"
  maxRounds: 8
servers:
  config: from-file.json
`), 0o600))

	t.Setenv("MCPCHAT_CHAT_MAXROUNDS", "12")
	t.Setenv("MCPCHAT_HISTORY_PATH", filepath.Join(dir, "history.db"))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.Bool("watch", false, "")
	flags.String("metrics-addr", "", "")
	require.NoError(t, flags.Parse([]string{"--config", "from-flag.json", "--watch"}))

	settings, err := LoadSettings(path, flags)
	require.NoError(t, err)
	require.Equal(t, "openai", settings.Model.Provider)
	require.Equal(t, "gpt-4o-mini", settings.Model.Name)
	require.Equal(t, 512, settings.Model.MaxTokens)
	require.Equal(t, "notes", settings.Chat.ResourceScheme)
	require.Equal(t, 12, settings.Chat.MaxRounds)
	require.Equal(t, "from-flag.json", settings.Servers.Config)
	require.True(t, settings.Servers.Watch)
	require.Equal(t, filepath.Join(dir, "history.db"), settings.History.Path)
	require.Empty(t, settings.Metrics.ListenAddress)

	llmCfg := settings.LLMConfig()
	require.Equal(t, "openai", llmCfg.Provider)
	require.Equal(t, "gpt-4o-mini", llmCfg.Model)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
