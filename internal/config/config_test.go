package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-0123456789-abcdef"

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WEBHOOK_SKIP_SIG", "true")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "ARCBANK", cfg.BankCode)
	require.Equal(t, 24*time.Hour, cfg.ReversalWindow)
	require.Equal(t, 30*time.Second, cfg.SwitchTimeout)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BANK_CODE", "DEMOBANK")
	t.Setenv("REVERSAL_WINDOW", "12h")
	t.Setenv("SWITCH_BASE_URL", "https://switch.test/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "DEMOBANK", cfg.BankCode)
	require.Equal(t, 12*time.Hour, cfg.ReversalWindow)
	require.Equal(t, "https://switch.test", cfg.SwitchBaseURL)
}

func TestLoadRejectsBadWindow(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REVERSAL_WINDOW", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("WEBHOOK_SKIP_SIG", "true")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresHMACKeyWhenSignatureEnforced(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("WEBHOOK_SKIP_SIG", "false")
	t.Setenv("WEBHOOK_HMAC_KEY", "")

	_, err := Load()
	require.Error(t, err)
}
