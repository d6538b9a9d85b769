// Package sessiondata provides a small key/value store scoped to the
// current user session. The EmercoinID login flow parks its access token
// here for the duration of a single login transaction so that extension
// points running later in the same request can still call the provider API.
package sessiondata

import "sync"

// KeyPrefix namespaces every key so that module data cannot collide with
// unrelated session values.
const KeyPrefix = "emcid_"

// AccessTokenKey is the session key holding the provider access token for
// the current login transaction.
const AccessTokenKey = "access_token"

// PostLoginPathKey is the session key holding the path the user should land
// on after the provider round trip completes.
const PostLoginPathKey = "post_login_path"

// SessionTokenKey is the session key holding the issued session JWT.
const SessionTokenKey = "session_token"

// Store reads and writes values scoped to one user session. Implementations
// must apply KeyPrefix to every key. Setting an empty value clears the slot,
// so callers can drop a stored access token on any failure branch.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Manager hands out per-session stores keyed by session id.
type Manager interface {
	For(sessionID string) Store
}

// InMemoryManager implements Manager with mutex-guarded maps. Suitable for
// single-instance deployments and tests; lifetime of the data is bound to
// the process, mirroring the host session lifetime.
type InMemoryManager struct {
	mutex    sync.RWMutex
	sessions map[string]map[string]string
}

// NewInMemoryManager creates an empty in-memory session data manager.
func NewInMemoryManager() *InMemoryManager {
	return &InMemoryManager{
		sessions: make(map[string]map[string]string),
	}
}

// For returns the store for the given session id, creating it when absent.
func (m *InMemoryManager) For(sessionID string) Store {
	return &inMemoryStore{manager: m, sessionID: sessionID}
}

// DropSession discards all data for a session.
func (m *InMemoryManager) DropSession(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

type inMemoryStore struct {
	manager   *InMemoryManager
	sessionID string
}

func (s *inMemoryStore) Get(key string) (string, bool) {
	s.manager.mutex.RLock()
	defer s.manager.mutex.RUnlock()

	values, ok := s.manager.sessions[s.sessionID]
	if !ok {
		return "", false
	}
	value, ok := values[KeyPrefix+key]
	return value, ok
}

func (s *inMemoryStore) Set(key, value string) {
	if value == "" {
		s.Delete(key)
		return
	}

	s.manager.mutex.Lock()
	defer s.manager.mutex.Unlock()

	values, ok := s.manager.sessions[s.sessionID]
	if !ok {
		values = make(map[string]string)
		s.manager.sessions[s.sessionID] = values
	}
	values[KeyPrefix+key] = value
}

func (s *inMemoryStore) Delete(key string) {
	s.manager.mutex.Lock()
	defer s.manager.mutex.Unlock()

	if values, ok := s.manager.sessions[s.sessionID]; ok {
		delete(values, KeyPrefix+key)
	}
}
