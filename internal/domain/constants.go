package domain

const (
	DefaultProviderConfigPath = "server_config.json"
	DefaultServersKey         = "mcpServers"
	DefaultTOMLServersKey     = "mcp_servers"
	DefaultResourceScheme     = "papers"
	DefaultModelProvider      = "anthropic"
	DefaultModelName          = "claude-3-7-sonnet-20250219"
	DefaultMaxTokens          = 2024
	DefaultInputPrompt        = "> Query: "
	DefaultLogLevel           = "warn"
	DefaultClientName         = "mcpchat"
	DefaultClientVersion      = "0.1.0"
	DefaultAnthropicKeyEnv    = "ANTHROPIC_API_KEY"
	DefaultOpenAIKeyEnv       = "OPENAI_API_KEY"
	DefaultReloadDebounceMs   = 250
	DefaultHTTPMaxRetries     = 3
)
