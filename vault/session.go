package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeyTTL    = 5 * time.Minute
	defaultResultTTL = 3 * time.Second
	// refreshBuffer: a key this close to expiry is refreshed proactively so
	// the prompt does not land in the middle of a multi-step flow.
	refreshBuffer = 30 * time.Second
)

type cachedResult struct {
	value   string
	found   bool
	expires time.Time
}

// Session is the secure vault. All state that was process-global in earlier
// designs (cached key, in-flight prompt, degraded flag) lives on the
// instance, with the clock and providers injected.
type Session struct {
	keychain Keychain
	store    SecureStore
	log      *zap.Logger
	now      func() time.Time

	keyTTL    time.Duration
	resultTTL time.Duration

	mu            sync.Mutex
	key           []byte
	keyExpiry     time.Time
	authenticated bool
	degraded      bool
	results       map[string]cachedResult

	// flight serializes concurrent authentications: first caller prompts,
	// everyone else awaits the same outcome.
	flight singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// WithKeyTTL overrides how long the derived key stays cached.
func WithKeyTTL(ttl time.Duration) Option { return func(s *Session) { s.keyTTL = ttl } }

// WithResultTTL overrides the read-dedup window.
func WithResultTTL(ttl time.Duration) Option { return func(s *Session) { s.resultTTL = ttl } }

// NewSession creates a vault session over a keychain and fallback store.
func NewSession(keychain Keychain, store SecureStore, log *zap.Logger, opts ...Option) *Session {
	s := &Session{
		keychain:  keychain,
		store:     store,
		log:       log,
		now:       time.Now,
		keyTTL:    defaultKeyTTL,
		resultTTL: defaultResultTTL,
		results:   make(map[string]cachedResult),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureKey returns the cached AES key, prompting for authentication when
// the cache is cold or inside the refresh buffer. A nil key with nil error
// means the session is degraded and secrets go to the fallback store in
// plaintext (the store itself is encrypted at rest by the OS).
func (s *Session) ensureKey(ctx context.Context, force bool) ([]byte, error) {
	s.mu.Lock()
	if s.degraded {
		s.mu.Unlock()
		return nil, nil
	}
	if !force && s.key != nil && s.now().Before(s.keyExpiry.Add(-refreshBuffer)) {
		key := s.key
		s.mu.Unlock()
		return key, nil
	}
	s.mu.Unlock()

	v, err, _ := s.flight.Do("authenticate", func() (any, error) {
		// Another caller may have finished while we queued.
		s.mu.Lock()
		if s.degraded {
			s.mu.Unlock()
			return []byte(nil), nil
		}
		if !force && s.key != nil && s.now().Before(s.keyExpiry.Add(-refreshBuffer)) {
			key := s.key
			s.mu.Unlock()
			return key, nil
		}
		s.mu.Unlock()

		key, err := s.keychain.RetrieveKey(ctx, force)
		if err != nil {
			return nil, err
		}
		if len(key) != scryptKeyLen {
			return nil, fmt.Errorf("vault: keychain returned %d-byte key, want %d", len(key), scryptKeyLen)
		}

		s.mu.Lock()
		s.key = key
		s.keyExpiry = s.now().Add(s.keyTTL)
		s.authenticated = true
		s.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return nil, s.handleAuthError(err, force)
	}
	return v.([]byte), nil
}

func (s *Session) handleAuthError(err error, force bool) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		// Permanent for the process lifetime: never re-attempt hardware
		// access, never re-prompt for it.
		s.mu.Lock()
		s.degraded = true
		clear(s.key)
		s.key = nil
		s.mu.Unlock()
		s.log.Warn("hardware key storage unavailable, vault degraded to fallback store")
		return nil
	case errors.Is(err, ErrCanceled):
		// A dismissed prompt is not a state-teardown event unless the
		// caller demanded a fresh authentication.
		if force {
			s.mu.Lock()
			s.authenticated = false
			clear(s.key)
			s.key = nil
			s.mu.Unlock()
		}
		return err
	default:
		s.mu.Lock()
		s.authenticated = false
		clear(s.key)
		s.key = nil
		s.mu.Unlock()
		return err
	}
}

// PreAuthenticate warms the key cache ahead of a sensitive flow. With
// forceReauth the prompt is shown even if a key is cached. Returns whether
// the session ended up authenticated.
func (s *Session) PreAuthenticate(ctx context.Context, forceReauth bool) (bool, error) {
	if _, err := s.ensureKey(ctx, forceReauth); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated || s.degraded, nil
}

func ctKey(field, userID string) string        { return field + "_ct_" + userID }
func ivKey(field, userID string) string        { return field + "_iv_" + userID }
func plaintextKey(field, userID string) string { return field + "_" + userID }

// Store encrypts and persists a secret for the user. In degraded mode the
// value goes to the fallback store unencrypted rather than failing the
// operation.
func (s *Session) Store(ctx context.Context, userID, field, value string) error {
	key, err := s.ensureKey(ctx, false)
	if err != nil {
		return err
	}

	defer s.dropResult(userID, field)

	if key == nil {
		return s.store.Set(plaintextKey(field, userID), value)
	}

	ciphertext, nonce, err := seal(key, []byte(value))
	if err != nil {
		// Cipher failure downgrades to plaintext-in-secure-storage rather
		// than stranding the secret.
		s.log.Warn("encryption unavailable, storing via fallback", zap.Error(err))
		return s.store.Set(plaintextKey(field, userID), value)
	}
	if err := s.store.Set(ctKey(field, userID), encodeField(ciphertext)); err != nil {
		return fmt.Errorf("failed to persist ciphertext: %w", err)
	}
	if err := s.store.Set(ivKey(field, userID), encodeField(nonce)); err != nil {
		// A ciphertext without its nonce is unreadable, and a later Get
		// would skip it and serve whatever stale plaintext copy exists.
		_ = s.store.Delete(ctKey(field, userID))
		return fmt.Errorf("failed to persist nonce: %w", err)
	}
	return nil
}

// Get retrieves and decrypts a secret. Repeated reads of the same
// (userID, field) within the result-cache window are served without
// touching storage or the authentication path.
func (s *Session) Get(ctx context.Context, userID, field string) (string, bool, error) {
	cacheKey := plaintextKey(field, userID)

	s.mu.Lock()
	if entry, ok := s.results[cacheKey]; ok && s.now().Before(entry.expires) {
		s.mu.Unlock()
		return entry.value, entry.found, nil
	}
	s.mu.Unlock()

	key, err := s.ensureKey(ctx, false)
	if err != nil {
		return "", false, err
	}

	value, found, err := s.read(key, userID, field)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	s.results[cacheKey] = cachedResult{value: value, found: found, expires: s.now().Add(s.resultTTL)}
	s.mu.Unlock()
	return value, found, nil
}

func (s *Session) read(key []byte, userID, field string) (string, bool, error) {
	if key != nil {
		ctStr, ctOK, err := s.store.Get(ctKey(field, userID))
		if err != nil {
			return "", false, err
		}
		ivStr, ivOK, err := s.store.Get(ivKey(field, userID))
		if err != nil {
			return "", false, err
		}
		if ctOK && ivOK {
			ciphertext, err := decodeField(ctStr)
			if err != nil {
				return "", false, err
			}
			nonce, err := decodeField(ivStr)
			if err != nil {
				return "", false, err
			}
			plaintext, err := open(key, nonce, ciphertext)
			if err != nil {
				return "", false, err
			}
			return string(plaintext), true, nil
		}
	}

	// Degraded sessions, or values written before encryption was available.
	value, ok, err := s.store.Get(plaintextKey(field, userID))
	if err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (s *Session) dropResult(userID, field string) {
	s.mu.Lock()
	delete(s.results, plaintextKey(field, userID))
	s.mu.Unlock()
}

// Delete removes a stored secret in both encrypted and plaintext forms.
func (s *Session) Delete(userID, field string) error {
	s.dropResult(userID, field)
	if err := s.store.Delete(ctKey(field, userID)); err != nil {
		return err
	}
	if err := s.store.Delete(ivKey(field, userID)); err != nil {
		return err
	}
	return s.store.Delete(plaintextKey(field, userID))
}

// Clear resets all vault state: cached key, authentication, result cache,
// in-flight prompt and the degraded flag. Used on logout.
func (s *Session) Clear() {
	s.flight.Forget("authenticate")
	s.mu.Lock()
	clear(s.key)
	s.key = nil
	s.keyExpiry = time.Time{}
	s.authenticated = false
	s.degraded = false
	s.results = make(map[string]cachedResult)
	s.mu.Unlock()
}
