package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags gives each test a fresh flag set and viper instance
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// withArgs runs LoadFromFlags with the given arguments and restores global
// state afterwards
func withArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})

	os.Args = append([]string{"pdf-unlocker"}, args...)
	resetFlags()
	return LoadFromFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	cfg, err := withArgs(t, "--dir="+t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, []string{"1234", "12345", "0000", "1111", ""}, cfg.Passwords)
	assert.Equal(t, 16, cfg.MaxCandidates)
	assert.Equal(t, 500, cfg.ExcerptLength)
	assert.NotEmpty(t, cfg.PDFDirectory)
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ModeServer, cfg.Mode)
				assert.Equal(t, "0.0.0.0:9090", cfg.Address())
			},
		},
		{
			name: "debug logging",
			args: []string{"--loglevel=debug"},
			verify: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsDebug())
			},
		},
		{
			name: "custom max file size",
			args: []string{"--maxfilesize=50000000"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, int64(50000000), cfg.MaxFileSize)
			},
		},
		{
			name: "passwords keep empty entries",
			args: []string{"--passwords=secret,,1234"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"secret", "", "1234"}, cfg.Passwords)
			},
		},
		{
			name: "pipeline tuning",
			args: []string{"--maxcandidates=8", "--workers=3", "--excerpt=120", "--cors=https://example.com"},
			verify: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.MaxCandidates)
				assert.Equal(t, 3, cfg.Workers)
				assert.Equal(t, 120, cfg.ExcerptLength)
				assert.Equal(t, "https://example.com", cfg.CORSOrigin)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	t.Setenv("PDF_UNLOCK_MODE", "server")
	t.Setenv("PDF_UNLOCK_PORT", "9191")
	t.Setenv("PDF_UNLOCK_LOGLEVEL", "warn")
	t.Setenv("PDF_UNLOCK_PASSWORDS", "alpha,beta,")
	t.Setenv("PDF_UNLOCK_WORKERS", "2")

	cfg, err := withArgs(t, "--dir="+t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, []string{"alpha", "beta", ""}, cfg.Passwords)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	t.Setenv("PDF_UNLOCK_PORT", "9191")

	cfg, err := withArgs(t, "--mode=server", "--port=7070", "--dir="+t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "mode", args: []string{"--mode=invalid"}, wantErr: "mode must be"},
		{name: "port", args: []string{"--mode=server", "--port=0"}, wantErr: "port must be"},
		{name: "log level", args: []string{"--loglevel=verbose"}, wantErr: "invalid log level"},
		{name: "too many passwords", args: []string{"--maxcandidates=1", "--passwords=a,b"}, wantErr: "candidate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := withArgs(t, append(tt.args, "--dir="+t.TempDir())...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	for _, flag := range []string{"--version", "-version", "-v"} {
		_, err := withArgs(t, flag)
		require.Error(t, err, flag)
		assert.Contains(t, err.Error(), "version requested")
	}
}
