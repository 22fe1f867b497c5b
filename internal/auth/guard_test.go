package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGuardPolicy(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	sm, _ := newTestSessions(t, clock)
	guard, err := NewGuard(sm)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	for _, perm := range []Permission{PermAdminAccess, PermUsersManage, PermIncidentsManage, PermDashboardView, PermAuditView} {
		if !guard.Can(RoleAdmin, perm) {
			t.Fatalf("admin should hold %s", perm)
		}
		if guard.Can(RoleUser, perm) {
			t.Fatalf("user should not hold %s", perm)
		}
	}
}

func TestGuardRequireAdmin(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now().UTC()}
	sm, dir := newTestSessions(t, clock)
	guard, err := NewGuard(sm)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	admin, _ := dir.CreateUser(ctx, NewUser{Email: "admin@capwa.ph", Password: "Passw0rd!", Name: "Admin", Role: RoleAdmin})
	member, _ := dir.CreateUser(ctx, NewUser{Email: "member@capwa.ph", Password: "Passw0rd!", Name: "Member"})
	adminTok, _ := sm.Issue(admin)
	memberTok, _ := sm.Issue(member)

	got, err := guard.RequireAdmin(ctx, NewSession(adminTok.Value))
	if err != nil || got.ID != admin.ID {
		t.Fatalf("RequireAdmin(admin): %+v %v", got, err)
	}
	if _, err := guard.RequireAdmin(ctx, NewSession(memberTok.Value)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for member, got %v", err)
	}
	if _, err := guard.RequireAdmin(ctx, &Session{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without a session, got %v", err)
	}

	// Role changes take effect on the next check without a new token.
	if _, err := dir.SetRole(ctx, admin.ID, RoleUser); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if _, err := guard.Authorize(ctx, NewSession(adminTok.Value), PermUsersManage); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected demoted admin to be unauthorized, got %v", err)
	}
}

func TestSessionContext(t *testing.T) {
	sess := NewSession("tok")
	ctx := ContextWithSession(context.Background(), sess)
	if SessionFromContext(ctx) != sess {
		t.Fatalf("expected attached session")
	}
	if SessionFromContext(context.Background()).Token() != "" {
		t.Fatalf("expected empty session when none attached")
	}
}
