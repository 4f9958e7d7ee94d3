package config

import (
	"testing"

	"vetbridge-affiliate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, domain.ScalePolicyReject, cfg.Simulator.ScalePolicy)
	assert.Equal(t, 500, cfg.Simulator.ChunkSize)
	assert.Equal(t, "0 3 * * *", cfg.Cron.UplineRebuild)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
	assert.NoError(t, cfg.Commission.Rates.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("COMMISSION_RATES", "0.2,0.1,0.05,0.05,0.05,0.05")
	t.Setenv("SIM_SCALE_POLICY", "CLAMP")
	t.Setenv("SIM_CHUNK_SIZE", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, domain.ScalePolicyClamp, cfg.Simulator.ScalePolicy)
	assert.Equal(t, 250, cfg.Simulator.ChunkSize)
	assert.Equal(t, "0.2", cfg.Commission.Rates.For(1).String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"app mode":     {"APP_MODE", "staging"},
		"driver":       {"DB_DRIVER", "oracle"},
		"rates":        {"COMMISSION_RATES", "0.9,0.9,0,0,0,0"},
		"scale policy": {"SIM_SCALE_POLICY", "ignore"},
		"chunk size":   {"SIM_CHUNK_SIZE", "0"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_MODE", "dev")
			t.Setenv(env[0], env[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
