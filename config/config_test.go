package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFullEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_URL", "https://bot.example.com/")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")
	t.Setenv("TWILIO_ACCOUNT_SID", "AC123")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15550001111")
	t.Setenv("TARGET_PHONE_NUMBER", "+15550002222")
	t.Setenv("TRANSCRIPTS_DIR", "out")
}

func TestLoadFullEnv(t *testing.T) {
	setFullEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://bot.example.com", cfg.PublicURL, "trailing slash stripped")
	assert.Equal(t, "out", cfg.TranscriptsDir)
	assert.NoError(t, cfg.ValidateServer())
	assert.NoError(t, cfg.ValidateRunner())
	assert.NoError(t, cfg.ValidateAnalyzer())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TRANSCRIPTS_DIR", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "transcripts", cfg.TranscriptsDir)
}

func TestLoadBadPort(t *testing.T) {
	t.Setenv("PORT", "eight thousand")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateReportsAllMissing(t *testing.T) {
	setFullEnv(t)
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TARGET_PHONE_NUMBER", "")
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.ValidateRunner()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_PHONE_NUMBER, TWILIO_AUTH_TOKEN")

	assert.NoError(t, cfg.ValidateServer(), "server does not need dialer credentials")
}
