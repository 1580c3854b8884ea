package credentials

// Credentials represents the stored API credentials in credentials.toml.
//
//	version = 0
//
//	[providers.anthropic]
//	api_key = "sk-ant-..."
//
//	[providers.anthropic.projects]
//	teplice = "sk-ant-..."
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential holds the default API key for a provider and optional
// per-project keys.
type ProviderCredential struct {
	APIKey   string            `toml:"api_key,omitempty"`
	Projects map[string]string `toml:"projects,omitempty"`
}
