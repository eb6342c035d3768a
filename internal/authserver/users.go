package authserver

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	DateJoined   time.Time `json:"-"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// userRepo is an in-memory user table keyed by ID with an email index
type userRepo struct {
	users    map[int64]*User
	emailIDs map[string]int64
	nextID   int64
	lock     sync.RWMutex
}

func newUserRepo() *userRepo {
	return &userRepo{
		users:    make(map[int64]*User),
		emailIDs: make(map[string]int64),
		nextID:   1,
	}
}

func (ur *userRepo) Create(email, name, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := ur.emailIDs[email]; ok {
		return nil, ErrUserExists
	}
	u := &User{ID: ur.nextID, Email: email, Name: name, PasswordHash: hash, DateJoined: time.Now()}
	ur.nextID++
	ur.users[u.ID] = u
	ur.emailIDs[email] = u.ID
	return u, nil
}

func (ur *userRepo) GetByEmail(email string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	id, ok := ur.emailIDs[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrUserNotFound
	}
	return ur.users[id], nil
}

func (ur *userRepo) GetByID(id int64) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	u, ok := ur.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}
