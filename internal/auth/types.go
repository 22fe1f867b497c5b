package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse access level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole normalizes s and rejects anything but the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Location is a user's optional home address.
type Location struct {
	Address  string  `json:"address,omitempty"`
	City     string  `json:"city,omitempty"`
	Province string  `json:"province,omitempty"`
	Region   string  `json:"region,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
}

// User is the public view of an account. The credential hash never leaves
// the directory.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	Phone     string     `json:"phone,omitempty"`
	Location  *Location  `json:"location,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// NewUser carries the fields accepted by Directory.CreateUser.
type NewUser struct {
	Email    string
	Password string
	Name     string
	Role     Role
	Phone    string
	Location *Location
}

// userRecord is the persisted form.
type userRecord struct {
	User
	PasswordHash string `json:"password_hash"`
}
