package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes end-user callers from the trusted internal worker
// service. The role travels inside signed tokens and is stored on the
// user record.
type Role string

// Recognized roles.
const (
	RoleUser    Role = "user"
	RoleService Role = "service"
)

// Valid reports whether the role is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleService
}

// Common validation errors for User.
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrUsernameTooLong     = errors.New("username must be at most 64 characters long")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

// User represents a registered caller of the API. The one designated
// service account carries RoleService; everything else is RoleUser.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Password       string     `json:"-"` // Plaintext password, used transiently during registration
	HashedPassword string     `json:"-"` // Never exposed in JSON
	Role           Role       `json:"role"`
	LastActive     *time.Time `json:"last_active,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewUser creates a new User with the given username and password.
// It generates a new UUID for the user ID, assigns RoleUser, and sets
// the creation/update timestamps. Returns an error if validation fails.
//
// NOTE: the plaintext password is kept on the struct only until it is
// hashed; the caller is responsible for hashing before storage.
func NewUser(username, password string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Username:  username,
		Password:  password,
		Role:      RoleUser,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
// Returns an error if any field fails validation.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Username == "" {
		return ErrEmptyUsername
	}

	if len(u.Username) > 64 {
		return ErrUsernameTooLong
	}

	if !u.Role.Valid() {
		return ErrInvalidRole
	}

	if u.Password != "" {
		// Bcrypt truncates beyond 72 bytes, so cap the plaintext there.
		if len(u.Password) < 8 {
			return ErrPasswordTooShort
		}
		if len(u.Password) > 72 {
			return ErrPasswordTooLong
		}
	} else if u.HashedPassword == "" {
		// Users loaded from the database carry only the hash.
		return ErrEmptyPassword
	}

	return nil
}
