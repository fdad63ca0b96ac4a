package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validOpenRouterKey = "sk-or-v1-0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STUDYCHAT_LLM_API_KEY",
		"STUDYCHAT_LLM_BASE_URL",
		"STUDYCHAT_LLM_MODEL",
		"STUDYCHAT_LLM_TIMEOUT_SECONDS",
		"STUDYCHAT_SITE_URL",
		"STUDYCHAT_SITE_NAME",
		"STUDYCHAT_SECRET",
		"STUDYCHAT_SESSION_TTL_HOURS",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, DefaultLLMBaseURL, p.LLMBaseURL)
	assert.Equal(t, DefaultLLMModel, p.LLMModel)
	assert.Equal(t, 120, p.LLMTimeout)
	assert.Equal(t, "StudyChat", p.SiteName)
	assert.Equal(t, 168, p.SessionTTLHours)
	assert.Empty(t, p.LLMAPIKey)
	assert.True(t, p.IsOpenRouter())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STUDYCHAT_LLM_BASE_URL", "http://localhost:11434/v1/")
	t.Setenv("STUDYCHAT_LLM_MODEL", "llama3.1")
	t.Setenv("STUDYCHAT_LLM_TIMEOUT_SECONDS", "30")
	t.Setenv("STUDYCHAT_SESSION_TTL_HOURS", "not-a-number")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "http://localhost:11434/v1", p.LLMBaseURL)
	assert.Equal(t, "llama3.1", p.LLMModel)
	assert.Equal(t, 30, p.LLMTimeout)
	assert.Equal(t, 168, p.SessionTTLHours)
	assert.False(t, p.IsOpenRouter())
}

func TestValidateReportsAllMissingSettings(t *testing.T) {
	p := &Profile{Mode: "prod", Driver: "postgres"}

	err := p.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "STUDYCHAT_DSN")
	assert.Contains(t, msg, "STUDYCHAT_LLM_API_KEY")
	assert.Contains(t, msg, "STUDYCHAT_LLM_BASE_URL")
	assert.Contains(t, msg, "STUDYCHAT_LLM_MODEL")
	assert.Contains(t, msg, "STUDYCHAT_SECRET")
}

func TestValidateOpenRouterKeyFormat(t *testing.T) {
	base := Profile{
		Mode:       "prod",
		Driver:     "postgres",
		DSN:        "postgres://localhost/studychat",
		LLMBaseURL: DefaultLLMBaseURL,
		LLMModel:   DefaultLLMModel,
		Secret:     strings.Repeat("s", 32),
	}

	bad := base
	bad.LLMAPIKey = "sk-not-openrouter"
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid OpenRouter key")

	good := base
	good.LLMAPIKey = validOpenRouterKey
	require.NoError(t, good.Validate())

	// Non-OpenRouter endpoints accept any key shape.
	other := base
	other.LLMBaseURL = "https://api.openai.com/v1"
	other.LLMAPIKey = "sk-proj-abc"
	require.NoError(t, other.Validate())
}

func TestValidateSQLiteDefaultsDSN(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{
		Mode:       "dev",
		Driver:     "sqlite",
		Data:       dir,
		LLMAPIKey:  validOpenRouterKey,
		LLMBaseURL: DefaultLLMBaseURL,
		LLMModel:   DefaultLLMModel,
	}

	require.NoError(t, p.Validate())
	assert.True(t, strings.HasSuffix(p.DSN, "studychat_dev.db"))
	assert.Equal(t, devSecret, p.Secret)
}

func TestValidateUnknownModeFallsBackToDev(t *testing.T) {
	p := &Profile{Mode: "demo", Driver: "mysql"}
	err := p.Validate()
	require.Error(t, err)
	assert.Equal(t, "dev", p.Mode)
	assert.Contains(t, err.Error(), `unsupported database driver "mysql"`)
}

func TestValidateStoreIgnoresCompletionSettings(t *testing.T) {
	p := &Profile{Mode: "prod", Driver: "postgres", DSN: "postgres://localhost/studychat"}
	require.NoError(t, p.ValidateStore())

	p = &Profile{Mode: "prod", Driver: "postgres"}
	err := p.ValidateStore()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUDYCHAT_DSN")
}
