package storage

import (
	"sync"

	"github.com/solwire/solwire/pkg/logger"
	"go.uber.org/zap"
)

// Validator is an optional predicate applied before persisting a value.
// A false result rejects the write without an error; the previously
// persisted value is left untouched.
type Validator func(value string) bool

// Store is a typed single-key view over a KV backend with graceful
// degradation. Backing-store failures switch the store to an in-memory
// value for the rest of the process and are recorded for health
// diagnostics; Set never propagates a failure to the caller.
type Store struct {
	kv        KV
	key       string
	validator Validator

	mu       sync.Mutex
	memory   string
	hasMem   bool
	degraded bool
	lastErr  error
	logger   *zap.Logger
}

// NewStore creates a typed store for one key. The validator may be nil.
func NewStore(kv KV, key string, validator Validator) *Store {
	return &Store{
		kv:        kv,
		key:       key,
		validator: validator,
		logger:    logger.Get().With(zap.String("component", "storage"), zap.String("key", key)),
	}
}

// Get returns the persisted value, or the in-memory fallback when the
// backend has degraded. The second result reports presence.
func (s *Store) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.memory, s.hasMem
	}

	v, ok, err := s.kv.GetItem(s.key)
	if err != nil {
		s.degradeLocked(err)
		return s.memory, s.hasMem
	}
	return v, ok
}

// Set persists the value. It returns false when a validator rejects the
// value; backend failures degrade to memory and still return true because
// the value is retained for the process lifetime.
func (s *Store) Set(value string) bool {
	if s.validator != nil && !s.validator(value) {
		s.logger.Debug("value rejected by validator")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = value
	s.hasMem = true

	if s.degraded {
		return true
	}
	if err := s.kv.SetItem(s.key, value); err != nil {
		s.degradeLocked(err)
	}
	return true
}

// Remove clears the value from the backend and the in-memory fallback.
func (s *Store) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.memory = ""
	s.hasMem = false

	if s.degraded {
		return
	}
	if err := s.kv.RemoveItem(s.key); err != nil {
		s.degradeLocked(err)
	}
}

// Degraded reports whether the backend has failed and the store is
// operating on its in-memory fallback.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// LastError returns the backend failure that caused degradation, if any.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) degradeLocked(err error) {
	if !s.degraded {
		s.logger.Warn("storage backend unavailable, falling back to memory", zap.Error(err))
	}
	s.degraded = true
	s.lastErr = err
}
