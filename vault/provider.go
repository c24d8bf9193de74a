// Package vault is the secure secret store for seed phrases and wallet
// private keys: an authenticated symmetric-key cache in front of
// hardware-gated or OS-level storage, with at most one authentication
// prompt per cache-TTL window regardless of caller concurrency.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrUnavailable means hardware-backed key storage cannot be used in
	// this environment. The session degrades permanently for the process
	// lifetime and never re-attempts hardware access.
	ErrUnavailable = errors.New("vault: hardware key storage unavailable")
	// ErrCanceled means the user dismissed the authentication prompt.
	ErrCanceled = errors.New("vault: authentication canceled by user")
)

// Keychain produces the vault's symmetric key behind an authentication
// gate. RetrieveKey blocks on the user prompt (biometric, passcode) and
// returns the 32-byte key. force requests a fresh prompt even when the
// provider has its own shorter-lived session.
type Keychain interface {
	RetrieveKey(ctx context.Context, force bool) ([]byte, error)
}

// SecureStore is the plain key-value fallback (OS secure storage, encrypted
// at rest by the platform).
type SecureStore interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Delete(key string) error
}

// PasscodeKeychain derives the vault key from an operator passcode with
// scrypt. The salt persists in the fallback store so the same passcode
// always yields the same key.
type PasscodeKeychain struct {
	Passcode func() ([]byte, error)
	Store    SecureStore
}

const saltStoreKey = "vault_kdf_salt"

// RetrieveKey derives the AES key from the passcode and the persisted salt.
func (k *PasscodeKeychain) RetrieveKey(ctx context.Context, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	passcode, err := k.Passcode()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanceled, err.Error())
	}
	defer clear(passcode)

	salt, err := k.loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	return DeriveKey(passcode, salt)
}

func (k *PasscodeKeychain) loadOrCreateSalt() ([]byte, error) {
	if stored, ok, err := k.Store.Get(saltStoreKey); err == nil && ok {
		return decodeField(stored)
	}
	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	if err := k.Store.Set(saltStoreKey, encodeField(salt)); err != nil {
		return nil, fmt.Errorf("failed to persist kdf salt: %w", err)
	}
	return salt, nil
}

// FileStore is a SecureStore backed by a 0600 JSON file. It stands in for
// OS secure storage on server deployments.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or creates) the store file under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, "secrets.json")}, nil
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	out := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to parse secrets file: %w", err)
		}
	}
	return out, nil
}

func (s *FileStore) save(m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.load()
	if err != nil {
		return err
	}
	delete(m, key)
	return s.save(m)
}
