package keys

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const keyringService = "codeconcat"

// keyringGet reads provider's key from the OS keyring. A missing backend
// (e.g. headless Linux with no Secret Service) or a missing entry both
// collapse to a miss, never a panic or a returned error.
func keyringGet(provider string) (string, bool) {
	key, err := keyring.Get(keyringService, "api_key_"+provider)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			log.WithError(err).WithField("provider", provider).Debug("keyring unavailable, treating as miss")
		}
		return "", false
	}
	return key, true
}

func keyringSet(provider, apiKey string) error {
	return keyring.Set(keyringService, "api_key_"+provider, apiKey)
}

func keyringDelete(provider string) error {
	err := keyring.Delete(keyringService, "api_key_"+provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
