package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"recordkeeper-hq/keeper/pkg/config"
)

func writeSecret(t *testing.T, dir, name, value string, perm os.FileMode) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), perm); err != nil {
		t.Fatalf("write secret: %v", err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("KEEPER_SECRET_WAREHOUSE_PASSWORD", "hunter2")
	p := NewEnvProvider("KEEPER_SECRET_")

	got, err := p.Get(context.Background(), "warehouse-password")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Get() = %q, want %q", got, "hunter2")
	}

	if _, err := p.Get(context.Background(), "missing"); err == nil {
		t.Error("Get() of unset variable should fail")
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "git-token", "ghp_abc\n", 0o600)
	writeSecret(t, dir, "open", "visible", 0o644)

	p, err := NewFileProvider(dir)
	if err != nil {
		t.Fatalf("NewFileProvider() error = %v", err)
	}

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr bool
	}{
		{"trimmed value", "git-token", "ghp_abc", false},
		{"insecure permissions", "open", "", true},
		{"missing", "nope", "", true},
		{"traversal", "../etc/passwd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Get(context.Background(), tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get(%q) error = %v, wantErr %v", tt.secret, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestNewFileProvider_RequiresDirectory(t *testing.T) {
	if _, err := NewFileProvider(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("NewFileProvider() on a missing directory should fail")
	}
}

type countingProvider struct {
	values map[string]string
	calls  int
}

func (c *countingProvider) Get(ctx context.Context, name string) (string, error) {
	c.calls++
	if v, ok := c.values[name]; ok {
		return v, nil
	}
	return "", errors.New("not here")
}

func (c *countingProvider) Name() string { return "counting" }

func TestManager_OrderAndCache(t *testing.T) {
	first := &countingProvider{values: map[string]string{"a": "from-first"}}
	second := &countingProvider{values: map[string]string{"a": "from-second", "b": "only-second"}}
	m := NewManager(first, second)
	ctx := context.Background()

	if got, _ := m.Get(ctx, "a"); got != "from-first" {
		t.Errorf("Get(a) = %q, want the first provider's value", got)
	}
	if got, _ := m.Get(ctx, "b"); got != "only-second" {
		t.Errorf("Get(b) = %q", got)
	}
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatalf("Get(a) error = %v", err)
	}
	if first.calls != 2 {
		t.Errorf("first provider calls = %d, want 2 (a is cached)", first.calls)
	}
	if _, err := m.Get(ctx, "c"); err == nil {
		t.Error("Get(c) should fail when no provider holds it")
	}
}

func TestManager_ResolveReferences(t *testing.T) {
	m := NewManager(&countingProvider{values: map[string]string{"user": "keeper", "pass": "s3cret"}})

	got, err := m.ResolveReferences(context.Background(), "postgres://${secret:user}:${secret:pass}@db/analytics")
	if err != nil {
		t.Fatalf("ResolveReferences() error = %v", err)
	}
	if got != "postgres://keeper:s3cret@db/analytics" {
		t.Errorf("ResolveReferences() = %q", got)
	}

	got, err = m.ResolveReferences(context.Background(), "${secret:user}/${secret:missing}")
	if err == nil {
		t.Fatal("ResolveReferences() should report the missing secret")
	}
	if got != "keeper/${secret:missing}" {
		t.Errorf("ResolveReferences() = %q, want unresolved reference kept", got)
	}
}

func TestFromConfig_ResolveConfig(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "git-token", "ghp_file", 0o400)
	t.Setenv("KEEPER_SECRET_GIT_TOKEN", "ghp_env")
	t.Setenv("KEEPER_SECRET_DB_PASSWORD", "pw")

	m, err := FromConfig(config.SecretsConfig{EnvPrefix: "KEEPER_SECRET_", Dir: dir})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}

	cfg := config.Default()
	cfg.Warehouse.SQL.DSN = "postgres://keeper:${secret:db-password}@db/analytics"
	cfg.Catalog.Git.Token = "${secret:git-token}"
	cfg.Telemetry.Metrics.Pushgateway = "http://${secret:pushgateway-host}:9091"

	err = m.ResolveConfig(context.Background(), cfg)
	var verr config.ValidationError
	if !errors.As(err, &verr) || len(verr.Errors) != 1 || verr.Errors[0].Field != "telemetry.metrics.pushgateway" {
		t.Fatalf("ResolveConfig() error = %v, want one pushgateway field error", err)
	}
	if cfg.Warehouse.SQL.DSN != "postgres://keeper:pw@db/analytics" {
		t.Errorf("dsn = %q", cfg.Warehouse.SQL.DSN)
	}
	if cfg.Catalog.Git.Token != "ghp_file" {
		t.Errorf("token = %q, want the file value ahead of the environment", cfg.Catalog.Git.Token)
	}
	if !strings.Contains(cfg.Telemetry.Metrics.Pushgateway, "${secret:") {
		t.Errorf("pushgateway = %q, want reference kept", cfg.Telemetry.Metrics.Pushgateway)
	}
}
