package desk

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
)

const (
	minNameLen     = 2
	minPasswordLen = 8
	passwordSymbol = "!@#$%^&*"
)

// Registration is the self-service sign-up form.
type Registration struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	Phone    string         `json:"phone,omitempty"`
	Location *auth.Location `json:"location,omitempty"`
}

func (r Registration) validate() error {
	if len([]rune(strings.TrimSpace(r.Name))) < minNameLen {
		return fmt.Errorf("%w: name must be at least %d characters", auth.ErrInvalidInput, minNameLen)
	}
	email := strings.TrimSpace(r.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", auth.ErrInvalidInput)
	}
	return validatePassword(r.Password)
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", auth.ErrInvalidInput, minPasswordLen)
	}
	var upper, digit, symbol bool
	for _, c := range p {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsDigit(c):
			digit = true
		case strings.ContainsRune(passwordSymbol, c):
			symbol = true
		}
	}
	if !upper || !digit || !symbol {
		return fmt.Errorf("%w: password needs an uppercase letter, a digit and one of %s", auth.ErrInvalidInput, passwordSymbol)
	}
	return nil
}

// Login checks credentials, stamps the last login and stores the new
// token in sess.
func (d *Desk) Login(ctx context.Context, sess *auth.Session, email, password string) (auth.User, auth.Token, error) {
	user, err := d.users.FindByCredentials(ctx, email, password)
	if err != nil {
		return auth.User{}, auth.Token{}, err
	}
	if err := d.users.TouchLastLogin(ctx, user.ID); err != nil {
		return auth.User{}, auth.Token{}, err
	}
	if fresh, ok, err := d.users.FindByID(ctx, user.ID); err == nil && ok {
		user = fresh
	}
	tok, err := d.sessions.Issue(user)
	if err != nil {
		return auth.User{}, auth.Token{}, err
	}
	sess.Set(tok.Value)
	return user, tok, nil
}

// Register creates a plain user account and signs it in.
func (d *Desk) Register(ctx context.Context, sess *auth.Session, r Registration) (auth.User, auth.Token, error) {
	if err := r.validate(); err != nil {
		return auth.User{}, auth.Token{}, err
	}
	user, err := d.users.CreateUser(ctx, auth.NewUser{
		Email:    r.Email,
		Password: r.Password,
		Name:     r.Name,
		Role:     auth.RoleUser,
		Phone:    r.Phone,
		Location: r.Location,
	})
	if err != nil {
		return auth.User{}, auth.Token{}, err
	}
	tok, err := d.sessions.Issue(user)
	if err != nil {
		return auth.User{}, auth.Token{}, err
	}
	sess.Set(tok.Value)
	return user, tok, nil
}

func (d *Desk) CurrentUser(ctx context.Context, sess *auth.Session) (auth.User, bool, error) {
	return d.sessions.CurrentUser(ctx, sess)
}

func (d *Desk) Logout(sess *auth.Session) { d.sessions.Logout(sess) }

// AdminSeed is the account ensured at start-up.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// Bootstrap creates the seed admin unless a user with that email exists.
// An empty seed is a no-op.
func (d *Desk) Bootstrap(ctx context.Context, seed AdminSeed) error {
	if strings.TrimSpace(seed.Email) == "" {
		return nil
	}
	if _, ok, err := d.users.FindByEmail(ctx, seed.Email); err != nil || ok {
		return err
	}
	name := seed.Name
	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	user, err := d.users.CreateUser(ctx, auth.NewUser{
		Email:    seed.Email,
		Password: seed.Password,
		Name:     name,
		Role:     auth.RoleAdmin,
	})
	if errors.Is(err, auth.ErrEmailAlreadyRegistered) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("desk: bootstrap admin: %w", err)
	}
	obs.Info("desk.admin_bootstrapped", map[string]any{"user_id": user.ID, "email": user.Email})
	return nil
}
