package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfigPath(t *testing.T, configPath string) {
	t.Helper()
	old := resolveConfigPath
	resolveConfigPath = func() (string, error) { return configPath, nil }
	oldConf := Conf
	t.Cleanup(func() {
		resolveConfigPath = old
		Conf = oldConf
	})
}

func TestLoadOrCreateConfigMissingCreatesDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config", "config.toml")
	useConfigPath(t, configPath)

	created, err := LoadOrCreateConfig()
	require.NoError(t, err)
	assert.True(t, created)

	var got Config
	_, err = toml.DecodeFile(configPath, &got)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got.Server.Host)
	assert.Equal(t, 8888, got.Server.Port)
	assert.Equal(t, 20, got.Server.MaxUploadMb)
	assert.Equal(t, ArtifactBackendFile, got.Artifact.Backend)
	assert.Equal(t, 0, got.App.MaxInFlight)
	assert.True(t, got.History.Enabled)
}

func TestSaveConfigCreatesParentDirs(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "deep", "nest", "config.toml")
	useConfigPath(t, configPath)

	Conf = defaultConfig()
	Conf.Server.Port = 9999
	require.NoError(t, SaveConfig())

	var got Config
	_, err := toml.DecodeFile(configPath, &got)
	require.NoError(t, err)
	assert.Equal(t, 9999, got.Server.Port)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	useConfigPath(t, configPath)

	require.NoError(t, os.WriteFile(configPath, []byte(`
[app]
max_in_flight = 8

[backends.rexomni]
base_url = "http://gpu-box:9002"
`), 0o644))

	created, err := LoadOrCreateConfig()
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 8, Conf.App.MaxInFlight)
	assert.Equal(t, "http://gpu-box:9002", Conf.Backends.Rexomni.BaseUrl)
	assert.Equal(t, 8888, Conf.Server.Port)
	assert.Equal(t, 1, Conf.Backends.Rexomni.MaxConcurrent)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"VISIONGW_SERVER_PORT":      "9100",
		"VISIONGW_MAX_IN_FLIGHT":    "4",
		"VISIONGW_VLM_API_KEY":      "sk-env",
		"VISIONGW_ARTIFACT_BACKEND": "memory",
		"VISIONGW_REDIS_ADDR":       "redis:6379",
	}
	c := defaultConfig()
	require.NoError(t, applyEnvOverrides(&c, func(k string) string { return env[k] }))

	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, 4, c.App.MaxInFlight)
	assert.Equal(t, "sk-env", c.Backends.Vlm.ApiKey)
	assert.Equal(t, ArtifactBackendMemory, c.Artifact.Backend)
	assert.Equal(t, "redis:6379", c.Notify.RedisAddr)
	assert.Equal(t, "127.0.0.1", c.Server.Host)

	env["VISIONGW_SERVER_PORT"] = "eighty"
	assert.Error(t, applyEnvOverrides(&c, func(k string) string { return env[k] }))
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative in flight", func(c *Config) { c.App.MaxInFlight = -1 }, true},
		{"unknown artifact backend", func(c *Config) { c.Artifact.Backend = "s3" }, true},
		{"oss without bucket", func(c *Config) { c.Artifact.Backend = ArtifactBackendOss }, true},
		{"oss complete", func(c *Config) {
			c.Artifact.Backend = ArtifactBackendOss
			c.Artifact.Oss.Bucket = "b"
			c.Artifact.Oss.Region = "cn-hangzhou"
		}, false},
		{"relative sidecar url", func(c *Config) { c.Backends.Florence.BaseUrl = "localhost:9001" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			tt.mutate(&c)
			err := check(&c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
