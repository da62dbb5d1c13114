package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "contratos-api", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, SourceFS, cfg.TemplateSource)
	assert.Equal(t, "templates", cfg.TemplateDir)
	assert.Equal(t, int64(20*1024*1024), cfg.MaxTemplateSize)
	assert.Equal(t, 60, cfg.RateLimit)
	assert.Equal(t, 10.0, cfg.FontSize)
	assert.True(t, cfg.Production)
}

func validConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid server config", mutate: func(*Config) {}},
		{
			name:   "stdio mode ignores the port",
			mutate: func(c *Config) { c.Mode = ModeStdio; c.Port = 0 },
		},
		{
			name:   "valid minio config",
			mutate: func(c *Config) { c.TemplateSource = SourceMinio; c.Minio = MinioConfig{Endpoint: "m:9000", Bucket: "b"} },
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Mode = "invalid" },
			wantErr: "mode must be",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "port must be between",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Port = 65536 },
			wantErr: "port must be between",
		},
		{
			name:    "empty template directory",
			mutate:  func(c *Config) { c.TemplateDir = "" },
			wantErr: "template directory cannot be empty",
		},
		{
			name:    "unknown source",
			mutate:  func(c *Config) { c.TemplateSource = "http" },
			wantErr: "invalid template source",
		},
		{
			name:    "minio without endpoint",
			mutate:  func(c *Config) { c.TemplateSource = SourceMinio; c.Minio.Bucket = "b" },
			wantErr: "requires an endpoint",
		},
		{
			name:    "negative template size",
			mutate:  func(c *Config) { c.MaxTemplateSize = -1 },
			wantErr: "maximum template size",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.LogLevel = "trace" },
			wantErr: "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.LogFormat = "text" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidateCreatesOutputDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, cfg.Validate())
	assert.DirExists(t, cfg.OutputDir)
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 5000}
	assert.Equal(t, "localhost:5000", cfg.Address())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Minio.SecretKey = "super-secret"

	s := cfg.String()
	assert.True(t, strings.HasPrefix(s, "Config{"))
	assert.Contains(t, s, "Mode: server")
	assert.Contains(t, s, "Port: 5000")
	assert.NotContains(t, s, "super-secret")
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeServer, LogLevel: "debug"}
	assert.True(t, cfg.IsServerMode())
	assert.False(t, cfg.IsStdioMode())
	assert.True(t, cfg.IsDebug())

	cfg.Mode = ModeStdio
	cfg.LogLevel = "info"
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsDebug())
}
