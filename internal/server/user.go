package server

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yourusername/roomlog/internal/apperror"
)

const maxUsernameLength = 32

// User represents a persistent user profile
type User struct {
	ID       string
	Username string
}

// UserManager manages user profiles for the life of the process
type UserManager struct {
	users     map[string]*User // UserID -> User
	usernames map[string]*User // Username -> User (for uniqueness check)
	mu        sync.RWMutex
}

// NewUserManager creates a new user manager
func NewUserManager() *UserManager {
	return &UserManager{
		users:     make(map[string]*User),
		usernames: make(map[string]*User),
	}
}

// NormalizeUsername trims username and checks it is usable
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", apperror.New(apperror.CodeValidation, "username is required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return "", apperror.New(apperror.CodeValidation, "username is too long", username)
	}
	return username, nil
}

// GetOrCreateUserByUsername gets existing user by username or creates new one.
// The bool reports whether the user already existed.
func (um *UserManager) GetOrCreateUserByUsername(username string) (*User, bool, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return nil, false, err
	}

	um.mu.Lock()
	defer um.mu.Unlock()

	if user, exists := um.usernames[username]; exists {
		return user, true, nil
	}

	user := &User{
		ID:       uuid.New().String(),
		Username: username,
	}

	um.users[user.ID] = user
	um.usernames[username] = user
	return user, false, nil
}

// Count returns the number of known users
func (um *UserManager) Count() int {
	um.mu.RLock()
	defer um.mu.RUnlock()
	return len(um.users)
}
