package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "output/3nf", cfg.Pipeline.TablesDir)
	assert.Equal(t, "output/tableau_ready", cfg.Pipeline.DashboardDir)
	assert.Equal(t, "output/tableau", cfg.Pipeline.ReportDir)
	assert.Equal(t, 2004, cfg.Baselines.DistinctLoans)
	assert.Equal(t, 10999, cfg.Baselines.EventRows)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown log level rejected",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "unknown log output rejected",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: true,
		},
		{
			name:    "negative baseline rejected",
			mutate:  func(c *Config) { c.Baselines.EventRows = -1 },
			wantErr: true,
		},
		{
			name:    "empty tables dir rejected",
			mutate:  func(c *Config) { c.Pipeline.TablesDir = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMerge_EnvWinsOverFile(t *testing.T) {
	file := *Default()
	file.Pipeline.SourceFile = "from_file.xlsx"
	file.Logging.Level = "debug"

	env := *Default()
	env.Pipeline.SourceFile = "from_env.xlsx"

	merged := merge(file, env)

	// Env value survives, file fills the rest.
	assert.Equal(t, "from_env.xlsx", merged.Pipeline.SourceFile)
	assert.Equal(t, "debug", merged.Logging.Level)
}
