package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/ids"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
)

// Directory is the user store. All users live in one JSON array under
// kv.KeyUsers; every mutation is a locked read-modify-write of that array.
type Directory struct {
	mu     sync.Mutex
	store  kv.Store
	now    func() time.Time
	newID  func() string
	verify func(encoded, password string) (bool, error)
}

type DirectoryOption func(*Directory)

func WithDirectoryClock(fn func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.now = fn
		}
	}
}

func WithUserIDs(fn func() string) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.newID = fn
		}
	}
}

func NewDirectory(store kv.Store, opts ...DirectoryOption) (*Directory, error) {
	if store == nil {
		return nil, errors.New("auth: kv store is required")
	}
	d := &Directory{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  ids.New,
		verify: VerifyPassword,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Directory) load(ctx context.Context) []userRecord {
	return kv.LoadList[userRecord](ctx, d.store, kv.KeyUsers)
}

// loadForWrite fails on backend errors instead of yielding an empty list.
func (d *Directory) loadForWrite(ctx context.Context) ([]userRecord, error) {
	records, err := kv.LoadListStrict[userRecord](ctx, d.store, kv.KeyUsers)
	if err != nil {
		return nil, fmt.Errorf("auth: load users: %w", err)
	}
	return records, nil
}

func (d *Directory) save(ctx context.Context, records []userRecord) error {
	if err := kv.SaveList(ctx, d.store, kv.KeyUsers, records); err != nil {
		return fmt.Errorf("auth: save users: %w", err)
	}
	return nil
}

// CreateUser stores a new account. Email uniqueness is an exact match on
// the trimmed address.
func (d *Directory) CreateUser(ctx context.Context, in NewUser) (User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	if _, err := ParseRole(string(role)); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.loadForWrite(ctx)
	if err != nil {
		return User{}, err
	}
	for _, r := range records {
		if r.Email == email {
			return User{}, fmt.Errorf("%w: %s", ErrEmailAlreadyRegistered, email)
		}
	}
	user := User{
		ID:        d.newID(),
		Email:     email,
		Name:      strings.TrimSpace(in.Name),
		Role:      role,
		Phone:     strings.TrimSpace(in.Phone),
		Location:  in.Location,
		CreatedAt: d.now(),
	}
	records = append(records, userRecord{User: user, PasswordHash: hash})
	if err := d.save(ctx, records); err != nil {
		return User{}, err
	}
	return user, nil
}

// FindByCredentials returns ErrInvalidCredentials for both an unknown email
// and a wrong password.
func (d *Directory) FindByCredentials(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(email)
	d.mu.Lock()
	records := d.load(ctx)
	d.mu.Unlock()

	for _, r := range records {
		if r.Email != email {
			continue
		}
		ok, err := d.verify(r.PasswordHash, password)
		if err != nil || !ok {
			return User{}, ErrInvalidCredentials
		}
		return r.User, nil
	}
	// Unknown emails pay the same hashing cost as known ones.
	_, _ = d.verify(unknownUserHash(), password)
	return User{}, ErrInvalidCredentials
}

func (d *Directory) FindByID(ctx context.Context, id string) (User, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.load(ctx) {
		if r.ID == id {
			return r.User, true, nil
		}
	}
	return User{}, false, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (User, bool, error) {
	email = strings.TrimSpace(email)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.load(ctx) {
		if r.Email == email {
			return r.User, true, nil
		}
	}
	return User{}, false, nil
}

func (d *Directory) ListAll(ctx context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	records := d.load(ctx)
	out := make([]User, 0, len(records))
	for _, r := range records {
		out = append(out, r.User)
	}
	return out, nil
}

func (d *Directory) SetRole(ctx context.Context, id string, role Role) (User, error) {
	role, err := ParseRole(string(role))
	if err != nil {
		return User{}, err
	}
	var updated User
	err = d.mutate(ctx, id, func(r *userRecord) {
		r.Role = role
		updated = r.User
	})
	return updated, err
}

func (d *Directory) TouchLastLogin(ctx context.Context, id string) error {
	return d.mutate(ctx, id, func(r *userRecord) {
		now := d.now()
		r.LastLogin = &now
	})
}

func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.loadForWrite(ctx)
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.ID == id {
			records = append(records[:i], records[i+1:]...)
			return d.save(ctx, records)
		}
	}
	return fmt.Errorf("%w: %s", ErrUserNotFound, id)
}

func (d *Directory) mutate(ctx context.Context, id string, fn func(*userRecord)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.loadForWrite(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			fn(&records[i])
			return d.save(ctx, records)
		}
	}
	return fmt.Errorf("%w: %s", ErrUserNotFound, id)
}
