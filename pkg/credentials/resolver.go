package credentials

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hypedigitaly/streamer/pkg/logger"
)

// ErrMissingKey is returned when no key is configured for a request. It is a
// configuration error: the request fails without contacting the upstream.
var ErrMissingKey = errors.New("API key not found")

// Store is a source of stored credentials. *Manager implements it.
type Store interface {
	Load() (*Credentials, error)
}

// Resolver picks the API key for a provider and selector (a project name or
// key type). Lookup order:
//  1. env <VAR>_<SELECTOR>, e.g. ANTHROPIC_API_KEY_TEPLICE
//  2. credentials.toml project key
//  3. env <VAR>, e.g. ANTHROPIC_API_KEY
//  4. credentials.toml provider key
type Resolver struct {
	store  Store
	getenv func(string) string
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithGetenv replaces os.Getenv.
func WithGetenv(getenv func(string) string) ResolverOption {
	return func(r *Resolver) { r.getenv = getenv }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver. store may be nil to use the environment only.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:  store,
		getenv: os.Getenv,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the key for provider and selector. It wraps ErrMissingKey
// when none is configured.
func (r *Resolver) Resolve(provider, selector string) (string, error) {
	envVar := EnvVarForProvider(provider)
	if envVar == "" {
		return "", fmt.Errorf("unsupported provider %q", provider)
	}

	var creds *Credentials
	if r.store != nil {
		c, err := r.store.Load()
		if err != nil {
			// A broken credentials file must not hide environment keys.
			r.logger.Warn("could not load stored credentials", "error", err)
		} else {
			creds = c
		}
	}

	if selector != "" {
		if key := r.getenv(envVar + "_" + EnvSuffix(selector)); key != "" {
			return key, nil
		}
		if creds != nil {
			if key := creds.lookup(provider, selector); key != "" {
				return key, nil
			}
		}
	}

	if key := r.getenv(envVar); key != "" {
		return key, nil
	}
	if creds != nil {
		if key := creds.lookup(provider, ""); key != "" {
			return key, nil
		}
	}

	if selector == "" {
		return "", fmt.Errorf("%w for %s", ErrMissingKey, provider)
	}
	return "", fmt.Errorf("%w for project: %s", ErrMissingKey, selector)
}

// EnvSuffix maps a selector to an environment variable suffix: upper case,
// with every character outside [A-Z0-9] replaced by '_'.
func EnvSuffix(selector string) string {
	var b strings.Builder
	b.Grow(len(selector))
	for _, r := range strings.ToUpper(selector) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
