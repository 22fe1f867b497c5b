package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Permission names a guarded capability.
type Permission string

const (
	PermAdminAccess     Permission = "admin.access"
	PermUsersManage     Permission = "users.manage"
	PermIncidentsManage Permission = "incidents.manage"
	PermDashboardView   Permission = "dashboard.view"
	PermAuditView       Permission = "audit.view"
)

const policyModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.perm, p.perm)
`

// defaultPolicy grants admins every permission; plain users hold none.
var defaultPolicy = [][]string{
	{string(RoleAdmin), "*"},
}

// CurrentUserResolver is satisfied by *SessionManager.
type CurrentUserResolver interface {
	CurrentUser(ctx context.Context, sess *Session) (User, bool, error)
}

// Guard gates administrative operations on the session's current user.
type Guard struct {
	sessions CurrentUserResolver
	enforcer *casbin.SyncedEnforcer
}

func NewGuard(sessions CurrentUserResolver) (*Guard, error) {
	if sessions == nil {
		return nil, errors.New("auth: session resolver is required")
	}
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("auth: load policy model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("auth: build enforcer: %w", err)
	}
	for _, rule := range defaultPolicy {
		if _, err := e.AddPolicy(rule[0], rule[1]); err != nil {
			return nil, fmt.Errorf("auth: add policy: %w", err)
		}
	}
	return &Guard{sessions: sessions, enforcer: e}, nil
}

// Can reports whether role holds perm.
func (g *Guard) Can(role Role, perm Permission) bool {
	ok, err := g.enforcer.Enforce(string(role), string(perm))
	return err == nil && ok
}

// Authorize returns the current user when it holds perm, ErrUnauthorized otherwise.
func (g *Guard) Authorize(ctx context.Context, sess *Session, perm Permission) (User, error) {
	user, ok, err := g.sessions.CurrentUser(ctx, sess)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, fmt.Errorf("%w: not signed in", ErrUnauthorized)
	}
	if !g.Can(user.Role, perm) {
		return User{}, fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, user.Role, perm)
	}
	return user, nil
}

func (g *Guard) RequireAdmin(ctx context.Context, sess *Session) (User, error) {
	return g.Authorize(ctx, sess, PermAdminAccess)
}
