package userstore

import (
	"context"
	"errors"
	"sync"

	goSession "github.com/MrEthical07/goSession"
)

// ErrDuplicateLogin is returned by [Memory.Add] for a login already present.
var ErrDuplicateLogin = errors.New("login already exists")

// Memory is an in-process user directory. It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	users  map[string]goSession.User
	nextID int64
}

// NewMemory returns an empty directory. Ids are assigned from 1.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]goSession.User)}
}

// Add registers an active user and returns it.
func (m *Memory) Add(login string) (goSession.User, error) {
	if login == "" {
		return goSession.User{}, errors.New("login is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[login]; ok {
		return goSession.User{}, ErrDuplicateLogin
	}
	m.nextID++
	u := goSession.User{ID: m.nextID, Login: login, Active: true}
	m.users[login] = u
	return u, nil
}

// SetActive activates or deactivates login. It reports whether the user exists.
func (m *Memory) SetActive(login string, active bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[login]
	if !ok {
		return false
	}
	u.Active = active
	m.users[login] = u
	return true
}

// Remove deletes login.
func (m *Memory) Remove(login string) {
	m.mu.Lock()
	delete(m.users, login)
	m.mu.Unlock()
}

// GetActiveUserByLogin implements [goSession.UserProvider].
func (m *Memory) GetActiveUserByLogin(_ context.Context, login string) (*goSession.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[login]
	if !ok || !u.Active {
		return nil, nil
	}
	return &u, nil
}
