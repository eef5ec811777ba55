package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired sets the env vars without which Load refuses to start.
func setRequired(t *testing.T) {
	t.Setenv("OPERATOR_ACCOUNT", "op-main")
	t.Setenv("PRIVACY_ENCRYPTION_KEY", "4242424242424242424242424242424242424242424242424242424242424242")
	t.Setenv("PRIVACY_PSEUDONYM_SALT", "salt")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Ledger.Backend)
	assert.Equal(t, 25, cfg.DB.MaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.DB.ConnMaxLifetime)
	assert.Equal(t, "settlement:events", cfg.Redis.Stream)
	assert.Equal(t, 30, cfg.Gateway.SubmitTimeoutSec)
	assert.Equal(t, 4, cfg.Coordinator.Workers)
	assert.Equal(t, 8, cfg.Coordinator.MaxAttempts)
	assert.Equal(t, "custody", cfg.Escrow.CustodyAccount)
	assert.Equal(t, int64(250), cfg.Escrow.FeeBps)
	assert.Equal(t, 10, cfg.Alert.CooldownMin)
	assert.Equal(t, 8081, cfg.Server.AdminPort)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "rpc")
	t.Setenv("LEDGER_RPC_URL", "http://ledger.internal:8899")
	t.Setenv("COORDINATOR_WORKERS", "16")
	t.Setenv("ESCROW_FEE_BPS", "100")
	t.Setenv("GATEWAY_SUBMIT_RATE_PER_SEC", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "rpc", cfg.Ledger.Backend)
	assert.Equal(t, "http://ledger.internal:8899", cfg.Ledger.RPCURL)
	assert.Equal(t, 16, cfg.Coordinator.Workers)
	assert.Equal(t, int64(100), cfg.Escrow.FeeBps)
	assert.Equal(t, 2.5, cfg.Gateway.SubmitRatePerSec)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("COORDINATOR_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Coordinator.Workers)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing operator",
			mutate:  func(t *testing.T) { t.Setenv("OPERATOR_ACCOUNT", "") },
			wantErr: "OPERATOR_ACCOUNT",
		},
		{
			name:    "missing encryption key",
			mutate:  func(t *testing.T) { t.Setenv("PRIVACY_ENCRYPTION_KEY", "") },
			wantErr: "PRIVACY_ENCRYPTION_KEY",
		},
		{
			name:    "missing pseudonym salt",
			mutate:  func(t *testing.T) { t.Setenv("PRIVACY_PSEUDONYM_SALT", "") },
			wantErr: "PRIVACY_PSEUDONYM_SALT",
		},
		{
			name:    "unknown ledger backend",
			mutate:  func(t *testing.T) { t.Setenv("LEDGER_BACKEND", "testnet") },
			wantErr: "LEDGER_BACKEND",
		},
		{
			name:    "fee out of range",
			mutate:  func(t *testing.T) { t.Setenv("ESCROW_FEE_BPS", "1500") },
			wantErr: "ESCROW_FEE_BPS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			tt.mutate(t)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
