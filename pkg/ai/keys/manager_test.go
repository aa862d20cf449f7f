package keys

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey_TooShortAlwaysFails(t *testing.T) {
	assert.False(t, ValidateAPIKey("openai", "short"))
}

func TestValidateAPIKey_ProviderPrefixes(t *testing.T) {
	assert.True(t, ValidateAPIKey("openai", "sk-abcdefghijklmnop"))
	assert.True(t, ValidateAPIKey("anthropic", "sk-ant-abcdefghijklmnop"))
	assert.True(t, ValidateAPIKey("openrouter", "sk-or-abcdefghijklmnop"))
	assert.False(t, ValidateAPIKey("openai", "wrong-prefix-but-long-enough"))
}

func TestValidateAPIKey_UnknownProviderFallsBackToLength(t *testing.T) {
	assert.True(t, ValidateAPIKey("zhipu", "exactly-twenty-chars"))
	assert.False(t, ValidateAPIKey("zhipu", "too-short-for-generic"[:15]))
}

func TestGetKey_ResolvesFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env-1234567890")

	m := NewManager(StrategyEnvironment, t.TempDir())
	k, ok := m.GetKey("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-from-env-1234567890", k)
}

func TestGetKey_ResolvesFromSecondaryEnvVar(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "sk-from-gemini-env-1234567890")

	m := NewManager(StrategyEnvironment, t.TempDir())
	k, ok := m.GetKey("google")
	require.True(t, ok)
	assert.Equal(t, "sk-from-gemini-env-1234567890", k)
}

func TestGetKey_MissingIsNotAnError(t *testing.T) {
	os.Unsetenv("OLLAMA_API_KEY")
	m := NewManager(StrategyEnvironment, t.TempDir())
	_, ok := m.GetKey("ollama")
	assert.False(t, ok)
}

func TestGetKey_CachesAfterFirstResolve(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-cached-1234567890")
	m := NewManager(StrategyEnvironment, t.TempDir())

	k1, _ := m.GetKey("openai")
	os.Unsetenv("OPENAI_API_KEY")
	k2, ok := m.GetKey("openai")

	require.True(t, ok)
	assert.Equal(t, k1, k2)
}

func TestSetKey_RejectsInvalidFormatWhenValidating(t *testing.T) {
	m := NewManager(StrategyEnvironment, t.TempDir())
	err := m.SetKey("openai", "nope", true)
	assert.Error(t, err)
}

func TestSetKey_SkipsValidationWhenToldTo(t *testing.T) {
	m := NewManager(StrategyEnvironment, t.TempDir())
	err := m.SetKey("openai", "nope", false)
	assert.NoError(t, err)

	k, ok := m.GetKey("openai")
	require.True(t, ok)
	assert.Equal(t, "nope", k)
}

func TestDeleteKey_ClearsCache(t *testing.T) {
	m := NewManager(StrategyEnvironment, t.TempDir())
	_ = m.SetKey("openai", "sk-deleteme-1234567890", true)

	require.NoError(t, m.DeleteKey("openai"))

	_, ok := m.GetKey("openai")
	assert.False(t, ok)
}

func TestEncryptedFileStrategy_SetThenGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(StrategyEncryptedFile, dir)
	m.enc.SetMasterPassword("hunter2-correct-horse")

	require.NoError(t, m.SetKey("anthropic", "sk-ant-abcdefghijklmnop", true))

	m2 := NewManager(StrategyEncryptedFile, dir)
	m2.enc.SetMasterPassword("hunter2-correct-horse")

	k, ok := m2.GetKey("anthropic")
	require.True(t, ok)
	assert.Equal(t, "sk-ant-abcdefghijklmnop", k)
}

func TestChangeMasterPassword_ReencryptsUnderNewPassword(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(StrategyEncryptedFile, dir)
	m.enc.SetMasterPassword("old-password")
	require.NoError(t, m.SetKey("anthropic", "sk-ant-abcdefghijklmnop", true))

	require.NoError(t, m.ChangeMasterPassword("old-password", "new-password"))

	reopened := NewManager(StrategyEncryptedFile, dir)
	reopened.enc.SetMasterPassword("new-password")
	k, ok := reopened.GetKey("anthropic")
	require.True(t, ok)
	assert.Equal(t, "sk-ant-abcdefghijklmnop", k)
}

func TestChangeMasterPassword_NoOpForNonEncryptedStrategy(t *testing.T) {
	m := NewManager(StrategyEnvironment, t.TempDir())
	assert.NoError(t, m.ChangeMasterPassword("anything", "anything-else"))
}

func TestTestAPIKey_NoKeyConfiguredIsAnError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	m := NewManager(StrategyEnvironment, t.TempDir())

	_, err := m.TestAPIKey(context.Background(), "openai")
	assert.Error(t, err)
}

func TestTestAPIKey_PropagatesProviderConstructionError(t *testing.T) {
	m := NewManager(StrategyEnvironment, t.TempDir())
	require.NoError(t, m.SetKey("bogus-provider", "some-key-value-1234567890", false))

	_, err := m.TestAPIKey(context.Background(), "bogus-provider")
	assert.Error(t, err)
}
