package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKFLOW_REVIEWERS", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"admin"}, cfg.Workflow.Reviewers)
	assert.True(t, cfg.Workflow.AllowReturnFromSubmitted)
	assert.Equal(t, int64(10*1024*1024), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "none", cfg.Storage.Driver)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKFLOW_REVIEWERS", "alice, bob ,,carol")
	t.Setenv("WORKFLOW_RETURN_FROM_SUBMITTED", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob", "carol"}, cfg.Workflow.Reviewers)
	assert.False(t, cfg.Workflow.AllowReturnFromSubmitted)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "workflow:\n  reviewers: [rev1, rev2]\n  allow_return_from_submitted: false\nai:\n  model: gpt-test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"rev1", "rev2"}, cfg.Workflow.Reviewers)
	assert.False(t, cfg.Workflow.AllowReturnFromSubmitted)
	assert.Equal(t, "gpt-test", cfg.AI.Model)
}

func TestLoadYAMLOverlayKeepsUnsetFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflow:\n  reviewers: [rev1]\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WORKFLOW_RETURN_FROM_SUBMITTED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"rev1"}, cfg.Workflow.Reviewers)
	assert.True(t, cfg.Workflow.AllowReturnFromSubmitted)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "forms", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5433/forms?sslmode=disable", d.DSN())
}
