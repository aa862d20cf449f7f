package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedStore_FullLifecycle(t *testing.T) {
	dir := t.TempDir()

	store := newEncryptedStore(dir)
	store.SetMasterPassword("first-password")
	require.NoError(t, store.set("openai", "sk-abcdefghijklmnop"))

	_, ok := store.get("nonexistent")
	assert.False(t, ok)

	reopened := newEncryptedStore(dir)
	reopened.SetMasterPassword("first-password")
	k, ok := reopened.get("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-abcdefghijklmnop", k)

	wrongPassword := newEncryptedStore(dir)
	wrongPassword.SetMasterPassword("wrong-password")
	_, ok = wrongPassword.get("openai")
	assert.False(t, ok, "decrypting with the wrong password must fail closed, not panic")

	changer := newEncryptedStore(dir)
	require.NoError(t, changer.changePassword("first-password", "second-password"))

	afterChange := newEncryptedStore(dir)
	afterChange.SetMasterPassword("second-password")
	k, ok = afterChange.get("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-abcdefghijklmnop", k)

	afterChange.SetMasterPassword("first-password")
	_, ok = afterChange.get("openai")
	assert.False(t, ok, "old password must no longer decrypt after a password change")
}

func TestEncryptedStore_ChangePasswordRejectsWrongOldPassword(t *testing.T) {
	dir := t.TempDir()
	store := newEncryptedStore(dir)
	store.SetMasterPassword("first-password")
	require.NoError(t, store.set("openai", "sk-abcdefghijklmnop"))

	changer := newEncryptedStore(dir)
	err := changer.changePassword("wrong-password", "second-password")
	assert.Error(t, err)

	stillFirst := newEncryptedStore(dir)
	stillFirst.SetMasterPassword("first-password")
	k, ok := stillFirst.get("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-abcdefghijklmnop", k, "a rejected password change must leave the original content intact")
}

func TestEncryptedStore_DeleteRemovesOneKeyOnly(t *testing.T) {
	dir := t.TempDir()
	store := newEncryptedStore(dir)
	store.SetMasterPassword("pw")

	require.NoError(t, store.set("openai", "sk-abcdefghijklmnop"))
	require.NoError(t, store.set("anthropic", "sk-ant-abcdefghijklmnop"))

	require.NoError(t, store.delete("openai"))

	_, ok := store.get("openai")
	assert.False(t, ok)

	k, ok := store.get("anthropic")
	assert.True(t, ok)
	assert.Equal(t, "sk-ant-abcdefghijklmnop", k)
}

func TestEncryptedStore_NoMasterPasswordIsAnError(t *testing.T) {
	t.Setenv(masterPasswordEnvVar, "")
	store := newEncryptedStore(t.TempDir())
	_, err := store.aead()
	assert.Error(t, err)
}

func TestEncryptedStore_ListProviders(t *testing.T) {
	dir := t.TempDir()
	store := newEncryptedStore(dir)
	store.SetMasterPassword("pw")
	require.NoError(t, store.set("openai", "sk-abcdefghijklmnop"))
	require.NoError(t, store.set("anthropic", "sk-ant-abcdefghijklmnop"))

	providers := store.listProviders()
	assert.ElementsMatch(t, []string{"openai", "anthropic"}, providers)
}
