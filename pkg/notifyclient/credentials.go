package notifyclient

import "sync"

// CredentialStore — клиентское хранилище сессии. Библиотека только
// читает его и не валидирует содержимое.
type CredentialStore interface {
	Token() string
	UserID() string
	UserType() string
}

// MemoryCredentialStore — потокобезопасная реализация в памяти.
type MemoryCredentialStore struct {
	mu       sync.RWMutex
	token    string
	userID   string
	userType string
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

// Set записывает данные сессии, например после логина.
func (s *MemoryCredentialStore) Set(token, userID, userType string) {
	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.userType = userType
	s.mu.Unlock()
}

// Clear очищает данные сессии при логауте.
func (s *MemoryCredentialStore) Clear() {
	s.Set("", "", "")
}

func (s *MemoryCredentialStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryCredentialStore) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *MemoryCredentialStore) UserType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userType
}
