package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 600000
	pbkdf2KeyLen     = 32
	saltLen          = 16

	masterPasswordEnvVar = "CODECONCAT_MASTER_PASSWORD"
)

// encryptedStore is the ENCRYPTED_FILE persistence tier: a PBKDF2-derived
// AES-256-GCM key encrypts a JSON {provider: api_key} map on disk, mirroring
// key_manager.py's Fernet-based _get_fernet/_set_key_in_encrypted_file.
// Go's crypto/cipher AES-256-GCM stands in for Fernet: no third-party
// authenticated-cipher package appears anywhere in the retrieved corpus, and
// the exact Fernet wire format is not required, only "any authenticated
// symmetric cipher".
type encryptedStore struct {
	dir        string
	keysPath   string
	saltPath   string

	mu            sync.Mutex
	masterPassword string
	gcm           cipher.AEAD
}

func newEncryptedStore(dir string) *encryptedStore {
	return &encryptedStore{
		dir:      dir,
		keysPath: filepath.Join(dir, "api_keys.enc"),
		saltPath: filepath.Join(dir, "salt"),
	}
}

// SetMasterPassword overrides the password used to derive the encryption
// key, taking precedence over CODECONCAT_MASTER_PASSWORD.
func (s *encryptedStore) SetMasterPassword(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterPassword = password
	s.gcm = nil
}

func (s *encryptedStore) password() (string, error) {
	if s.masterPassword != "" {
		return s.masterPassword, nil
	}
	if p := os.Getenv(masterPasswordEnvVar); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("no master password set: call SetMasterPassword or set %s", masterPasswordEnvVar)
}

func (s *encryptedStore) aead() (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gcm != nil {
		return s.gcm, nil
	}

	password, err := s.password()
	if err != nil {
		return nil, err
	}

	salt, err := s.getOrCreateSalt()
	if err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	s.gcm = gcm
	return gcm, nil
}

func (s *encryptedStore) getOrCreateSalt() ([]byte, error) {
	if data, err := os.ReadFile(s.saltPath); err == nil {
		return data, nil
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, err
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.saltPath, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *encryptedStore) loadAll() (map[string]string, error) {
	data, err := os.ReadFile(s.keysPath)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	gcm, err := s.aead()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("encrypted keys file is corrupt")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keys file: %w", err)
	}

	var keys map[string]string
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("keys file did not contain valid JSON: %w", err)
	}
	return keys, nil
}

func (s *encryptedStore) saveAll(keys map[string]string) error {
	gcm, err := s.aead()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	tmpPath := s.keysPath + ".tmp"
	if err := os.WriteFile(tmpPath, ciphertext, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.keysPath)
}

func (s *encryptedStore) get(provider string) (string, bool) {
	keys, err := s.loadAll()
	if err != nil {
		log.WithError(err).Debug("encrypted key store read failed, treating as miss")
		return "", false
	}
	k, ok := keys[provider]
	return k, ok
}

func (s *encryptedStore) set(provider, apiKey string) error {
	keys, err := s.loadAll()
	if err != nil {
		return err
	}
	keys[provider] = apiKey
	return s.saveAll(keys)
}

func (s *encryptedStore) delete(provider string) error {
	keys, err := s.loadAll()
	if err != nil {
		return err
	}
	delete(keys, provider)
	return s.saveAll(keys)
}

// changePassword decrypts every stored key under oldPassword, then
// re-encrypts and writes them under newPassword in one atomic replace.
func (s *encryptedStore) changePassword(oldPassword, newPassword string) error {
	s.SetMasterPassword(oldPassword)
	keys, err := s.loadAll()
	if err != nil {
		return fmt.Errorf("failed to decrypt existing keys with the current password: %w", err)
	}

	s.SetMasterPassword(newPassword)
	return s.saveAll(keys)
}

func (s *encryptedStore) listProviders() []string {
	keys, err := s.loadAll()
	if err != nil {
		return nil
	}
	var out []string
	for p := range keys {
		out = append(out, p)
	}
	return out
}
