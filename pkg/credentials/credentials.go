// Package credentials stores API keys in .streamer/credentials.toml and
// resolves the key to use for a request from the environment and that file.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/hypedigitaly/streamer/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

const (
	ProviderAnthropic = "anthropic"
	ProviderVoiceflow = "voiceflow"
)

// providerEnvVars maps provider names to their default environment variables.
// A selector-specific key lives in <VAR>_<SELECTOR>.
var providerEnvVars = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderVoiceflow: "VOICEFLOW_API_KEY",
}

// Manager manages reading and writing credentials.toml in the .streamer/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .streamer/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version:   currentVersion,
				Providers: make(map[string]ProviderCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetKey stores an API key for the given provider. A non-empty project stores
// it as that project's key instead of the provider default.
func (m *Manager) SetKey(provider, project, key string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	pc := creds.Providers[provider]
	if project == "" {
		pc.APIKey = key
	} else {
		if pc.Projects == nil {
			pc.Projects = make(map[string]string)
		}
		pc.Projects[project] = key
	}
	creds.Providers[provider] = pc

	return m.Save(creds)
}

// GetKey returns the stored API key for the given provider and project, with
// an empty project meaning the provider default. It does not fall back from
// a project to the default. Returns an empty string if no key is stored.
func (m *Manager) GetKey(provider, project string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.lookup(provider, project), nil
}

// RemoveKey deletes a stored key. An empty project removes the provider with
// all its project keys.
func (m *Manager) RemoveKey(provider, project string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	if project == "" {
		delete(creds.Providers, provider)
	} else if pc, ok := creds.Providers[provider]; ok {
		delete(pc.Projects, project)
		creds.Providers[provider] = pc
	}

	return m.Save(creds)
}

// ListProviders returns the names of providers that have stored credentials.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(creds.Providers))
	for name := range creds.Providers {
		providers = append(providers, name)
	}

	sort.Strings(providers)

	return providers, nil
}

// ListProjects returns the projects with a stored key for provider.
func (m *Manager) ListProjects(provider string) ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	pc := creds.Providers[provider]
	projects := make([]string, 0, len(pc.Projects))
	for name := range pc.Projects {
		projects = append(projects, name)
	}

	sort.Strings(projects)

	return projects, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

func (c *Credentials) lookup(provider, project string) string {
	pc, ok := c.Providers[provider]
	if !ok {
		return ""
	}
	if project == "" {
		return pc.APIKey
	}
	return pc.Projects[project]
}

// EnvVarForProvider returns the default environment variable name for a
// given provider. Returns an empty string for unknown providers.
func EnvVarForProvider(provider string) string {
	return providerEnvVars[provider]
}

// SupportedProviders returns the list of providers that require API keys.
func SupportedProviders() []string {
	return []string{ProviderAnthropic, ProviderVoiceflow}
}

// IsSupportedProvider returns true if the given provider is supported.
func IsSupportedProvider(provider string) bool {
	return slices.Contains(SupportedProviders(), provider)
}
