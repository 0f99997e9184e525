package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"recordkeeper-hq/keeper/pkg/config"
)

// secretRefRegex matches ${secret:name} patterns in configuration values.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager tries each provider in order until one returns the secret.
// Resolved values are cached for the life of the manager.
type Manager struct {
	providers []Provider

	mu    sync.Mutex
	cache map[string]string

	logger *slog.Logger
}

// NewManager creates a manager over providers, tried in order.
func NewManager(providers ...Provider) *Manager {
	return &Manager{
		providers: providers,
		cache:     make(map[string]string),
		logger:    slog.Default().With("component", "secrets"),
	}
}

// FromConfig builds the manager described by the secrets section: the
// secrets directory when set, then the environment.
func FromConfig(cfg config.SecretsConfig) (*Manager, error) {
	var providers []Provider
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, config.ValidationError{Errors: []config.FieldError{{Field: "secrets.dir", Message: err.Error()}}}
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix))
	return NewManager(providers...), nil
}

// Get returns a secret from the first provider that holds it.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	value, ok := m.cache[name]
	m.mu.Unlock()
	if ok {
		return value, nil
	}

	var errs []string
	for _, p := range m.providers {
		value, err := p.Get(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		m.logger.Debug("secret resolved", "name", redactSecretName(name), "provider", p.Name())
		m.mu.Lock()
		m.cache[name] = value
		m.mu.Unlock()
		return value, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("secret not found: %q (no providers configured)", name)
	}
	return "", fmt.Errorf("secret not found: %q (%s)", name, strings.Join(errs, "; "))
}

// ResolveReferences replaces every ${secret:name} in input. Unresolvable
// references are left in place and reported together.
func (m *Manager) ResolveReferences(ctx context.Context, input string) (string, error) {
	var errs []string
	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := m.Get(ctx, name)
		if err != nil {
			errs = append(errs, err.Error())
			return match
		}
		return value
	})
	if len(errs) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(errs, "; "))
	}
	return output, nil
}

// ResolveConfig resolves references in the credential-bearing fields of cfg
// in place.
func (m *Manager) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"warehouse.sql.dsn", &cfg.Warehouse.SQL.DSN},
		{"catalog.git.repository", &cfg.Catalog.Git.Repository},
		{"catalog.git.username", &cfg.Catalog.Git.Username},
		{"catalog.git.token", &cfg.Catalog.Git.Token},
		{"telemetry.metrics.pushgateway", &cfg.Telemetry.Metrics.Pushgateway},
		{"telemetry.tracing.endpoint", &cfg.Telemetry.Tracing.Endpoint},
	}

	var errs []config.FieldError
	for _, f := range fields {
		if !strings.Contains(*f.value, "${secret:") {
			continue
		}
		resolved, err := m.ResolveReferences(ctx, *f.value)
		if err != nil {
			errs = append(errs, config.FieldError{Field: f.name, Message: err.Error()})
			continue
		}
		*f.value = resolved
	}
	if len(errs) > 0 {
		return config.ValidationError{Errors: errs}
	}
	return nil
}

// redactSecretName keeps secret names recognizable in logs without
// printing them in full.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
