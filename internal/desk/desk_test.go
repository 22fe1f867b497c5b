package desk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

const (
	adminEmail    = "admin@capwa.ph"
	adminPassword = "Adm1n!pass"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type recorder struct{ events []stream.IncidentEvent }

func (r *recorder) Publish(evt stream.IncidentEvent) { r.events = append(r.events, evt) }

type fixture struct {
	desk   *Desk
	clock  *clock
	events *recorder
	admin  *auth.Session
	user   *auth.Session
}

func quietLogs(t *testing.T) {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetOutput(discard{})
	t.Cleanup(func() { logger.SetOutput(original) })
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	quietLogs(t)
	ctx := context.Background()
	c := &clock{now: time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	d, err := New(kv.NewMemory(), "desk-secret", WithClock(c.Now), WithPublisher(rec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Bootstrap(ctx, AdminSeed{Email: adminEmail, Password: adminPassword, Name: "Site Admin"}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	admin := &auth.Session{}
	if _, _, err := d.Login(ctx, admin, adminEmail, adminPassword); err != nil {
		t.Fatalf("admin Login: %v", err)
	}
	user := &auth.Session{}
	if _, _, err := d.Register(ctx, user, Registration{Email: "juan@example.com", Password: "Juan!2025", Name: "Juan"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &fixture{desk: d, clock: c, events: rec, admin: admin, user: user}
}

func draft() incident.Draft {
	return incident.Draft{
		Location:    incident.Location{Lat: 10.3157, Lng: 123.8854, City: "Cebu City", Region: "Central Visayas"},
		Type:        incident.TypeAbandoned,
		Severity:    incident.SeverityMedium,
		Description: "Puppies left in a box by the road",
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.desk.Bootstrap(ctx, AdminSeed{Email: adminEmail, Password: "Other!123"}); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if err := f.desk.Bootstrap(ctx, AdminSeed{}); err != nil {
		t.Fatalf("empty Bootstrap: %v", err)
	}
	users, err := f.desk.ListUsers(ctx, f.admin)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected admin and user, got %d", len(users))
	}
}

func TestLoginStampsLastLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := &auth.Session{}
	user, tok, err := f.desk.Login(ctx, sess, adminEmail, adminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.LastLogin == nil || !user.LastLogin.Equal(f.clock.now) {
		t.Fatalf("expected last login stamped, got %v", user.LastLogin)
	}
	if sess.Token() != tok.Value || !tok.ExpiresAt.Equal(f.clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected token/session: %+v", tok)
	}
	if _, _, err := f.desk.Login(ctx, &auth.Session{}, adminEmail, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]Registration{
		"short name":     {Email: "a@example.com", Password: "Passw0rd!", Name: "A"},
		"bad email":      {Email: "not-an-email", Password: "Passw0rd!", Name: "Ana"},
		"display email":  {Email: "Ana <a@example.com>", Password: "Passw0rd!", Name: "Ana"},
		"short password": {Email: "a@example.com", Password: "Pa0!", Name: "Ana"},
		"no upper":       {Email: "a@example.com", Password: "passw0rd!", Name: "Ana"},
		"no digit":       {Email: "a@example.com", Password: "Password!", Name: "Ana"},
		"no symbol":      {Email: "a@example.com", Password: "Passw0rdd", Name: "Ana"},
	}
	for name, reg := range cases {
		if _, _, err := f.desk.Register(ctx, &auth.Session{}, reg); !errors.Is(err, auth.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}

	if _, _, err := f.desk.Register(ctx, &auth.Session{}, Registration{Email: "juan@example.com", Password: "Juan!2025", Name: "Juan"}); !errors.Is(err, auth.ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}

	me, ok, err := f.desk.CurrentUser(ctx, f.user)
	if err != nil || !ok || me.Role != auth.RoleUser {
		t.Fatalf("registered user should be signed in as user: %+v %v %v", me, ok, err)
	}
}

func TestSessionExpiresWithClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, ok, _ := f.desk.CurrentUser(ctx, f.user); !ok {
		t.Fatalf("expected signed-in user")
	}
	f.clock.now = f.clock.now.Add(time.Hour + time.Second)
	if _, ok, _ := f.desk.CurrentUser(ctx, f.user); ok {
		t.Fatalf("expected session to expire")
	}
	if f.user.Token() != "" {
		t.Fatalf("expected expired token to be dropped")
	}

	f.desk.Logout(f.admin)
	if _, ok, _ := f.desk.CurrentUser(ctx, f.admin); ok {
		t.Fatalf("expected logout to clear the session")
	}
}

func TestNonAdminIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.desk.CreateReport(ctx, f.user, draft())
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	me, _, _ := f.desk.CurrentUser(ctx, f.user)

	calls := map[string]func(*auth.Session) error{
		"ListUsers": func(s *auth.Session) error { _, err := f.desk.ListUsers(ctx, s); return err },
		"SetUserRole": func(s *auth.Session) error {
			_, err := f.desk.SetUserRole(ctx, s, me.ID, auth.RoleAdmin)
			return err
		},
		"DeleteUser":     func(s *auth.Session) error { return f.desk.DeleteUser(ctx, s, me.ID) },
		"DashboardStats": func(s *auth.Session) error { _, err := f.desk.DashboardStats(ctx, s); return err },
		"RecentActivity": func(s *auth.Session) error { _, err := f.desk.RecentActivity(ctx, s, 10); return err },
		"UpdateStatus": func(s *auth.Session) error {
			_, err := f.desk.UpdateStatus(ctx, s, r.ID, incident.StatusClosed)
			return err
		},
		"AppendNote":   func(s *auth.Session) error { _, err := f.desk.AppendNote(ctx, s, r.ID, "note"); return err },
		"DeleteReport": func(s *auth.Session) error { return f.desk.DeleteReport(ctx, s, r.ID) },
	}
	for name, call := range calls {
		if err := call(f.user); !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("%s as user: expected ErrUnauthorized, got %v", name, err)
		}
		if err := call(&auth.Session{}); !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("%s anonymous: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _, _ := f.desk.CurrentUser(ctx, f.admin)
	member, _, _ := f.desk.CurrentUser(ctx, f.user)

	if err := f.desk.DeleteUser(ctx, f.admin, admin.ID); !errors.Is(err, auth.ErrSelfDeleteForbidden) {
		t.Fatalf("expected ErrSelfDeleteForbidden, got %v", err)
	}
	if err := f.desk.DeleteUser(ctx, f.admin, "ghost"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	promoted, err := f.desk.SetUserRole(ctx, f.admin, member.ID, auth.RoleAdmin)
	if err != nil || promoted.Role != auth.RoleAdmin {
		t.Fatalf("SetUserRole: %+v %v", promoted, err)
	}
	if _, err := f.desk.ListUsers(ctx, f.user); err != nil {
		t.Fatalf("promoted user should pass the guard without a new token: %v", err)
	}
	if _, err := f.desk.SetUserRole(ctx, f.admin, admin.ID, auth.RoleAdmin); err != nil {
		t.Fatalf("changing own role is permitted: %v", err)
	}

	if err := f.desk.DeleteUser(ctx, f.admin, member.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, ok, _ := f.desk.CurrentUser(ctx, f.user); ok {
		t.Fatalf("deleted user must not resolve")
	}

	acts, err := f.desk.RecentActivity(ctx, f.admin, 0)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(acts))
	}
	if acts[0].Action != audit.ActionDeleteUser || acts[0].ResourceID != member.ID || acts[0].UserName != "Site Admin" {
		t.Fatalf("unexpected newest entry: %+v", acts[0])
	}
	if acts[2].Action != audit.ActionUpdateUserRole {
		t.Fatalf("unexpected oldest entry: %+v", acts[2])
	}
}

func TestReportLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithIPAddress(context.Background(), "203.0.113.7")
	member, _, _ := f.desk.CurrentUser(ctx, f.user)
	admin, _, _ := f.desk.CurrentUser(ctx, f.admin)

	anon, err := f.desk.CreateReport(ctx, &auth.Session{}, draft())
	if err != nil {
		t.Fatalf("anonymous CreateReport: %v", err)
	}
	if anon.Reporter != nil {
		t.Fatalf("anonymous report should carry no reporter: %+v", anon.Reporter)
	}
	mine, err := f.desk.CreateReport(ctx, f.user, draft())
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if mine.Reporter == nil || mine.Reporter.UserID != member.ID || mine.Reporter.Name != "Juan" {
		t.Fatalf("reporter not linked: %+v", mine.Reporter)
	}

	list, err := f.desk.MyReports(ctx, f.user)
	if err != nil || len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("MyReports: %+v %v", list, err)
	}
	if _, err := f.desk.MyReports(ctx, &auth.Session{}); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.desk.ListReportsByReporter(ctx, f.admin, member.ID); err != nil {
		t.Fatalf("admin ListReportsByReporter: %v", err)
	}
	if _, err := f.desk.ListReportsByReporter(ctx, f.user, admin.ID); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for another user's reports, got %v", err)
	}

	if _, err := f.desk.UpdateStatus(ctx, f.admin, mine.ID, incident.StatusInvestigating); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := f.desk.UpdateSeverity(ctx, f.admin, mine.ID, incident.SeverityCritical); err != nil {
		t.Fatalf("UpdateSeverity: %v", err)
	}
	if _, err := f.desk.Assign(ctx, f.admin, mine.ID, "ghost"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for unknown assignee, got %v", err)
	}
	if _, err := f.desk.Assign(ctx, f.admin, mine.ID, admin.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	got, err := f.desk.AppendNote(ctx, f.admin, mine.ID, "Volunteer on the way")
	if err != nil {
		t.Fatalf("AppendNote: %v", err)
	}
	if got.Status != incident.StatusInvestigating || got.Severity != incident.SeverityCritical || got.AssignedTo != admin.ID {
		t.Fatalf("unexpected report state: %+v", got)
	}
	if want := "2025-08-01 09:00:00: Volunteer on the way"; len(got.AdminNotes) != 1 || got.AdminNotes[0] != want {
		t.Fatalf("unexpected notes: %q", got.AdminNotes)
	}

	critical, _ := f.desk.ListCritical(ctx)
	if len(critical) != 1 {
		t.Fatalf("expected one critical report, got %d", len(critical))
	}
	if _, err := f.desk.ListReportsByStatus(ctx, "archived"); !errors.Is(err, incident.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if err := f.desk.DeleteReport(ctx, f.admin, anon.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	if err := f.desk.DeleteReport(ctx, f.admin, anon.ID); !errors.Is(err, incident.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, _ := f.desk.ListReports(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 report left, got %d", len(all))
	}

	acts, _ := f.desk.RecentActivity(ctx, f.admin, 50)
	if len(acts) != 5 {
		t.Fatalf("expected 5 audit entries, got %d", len(acts))
	}
	if acts[0].Action != audit.ActionDeleteIncident || acts[0].IPAddress != "203.0.113.7" {
		t.Fatalf("unexpected newest audit entry: %+v", acts[0])
	}

	kinds := []stream.Kind{}
	for _, evt := range f.events.events {
		kinds = append(kinds, evt.Kind)
	}
	if len(kinds) != 7 || kinds[0] != stream.KindCreated || kinds[6] != stream.KindDeleted {
		t.Fatalf("unexpected published events: %v", kinds)
	}
}

func TestTwoSessionsLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _ := f.desk.CreateReport(ctx, f.user, draft())

	second := &auth.Session{}
	if _, _, err := f.desk.Login(ctx, second, adminEmail, adminPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}

	desc := "Updated by the first admin session"
	investigating := incident.StatusInvestigating
	if _, err := f.desk.UpdateReport(ctx, f.admin, r.ID, incident.Patch{Status: &investigating, Description: &desc}); err != nil {
		t.Fatalf("first UpdateReport: %v", err)
	}
	resolved := incident.StatusResolved
	if _, err := f.desk.UpdateReport(ctx, second, r.ID, incident.Patch{Status: &resolved}); err != nil {
		t.Fatalf("second UpdateReport: %v", err)
	}

	got, _ := f.desk.GetReport(ctx, r.ID)
	if got.Status != incident.StatusResolved || got.Description != desc {
		t.Fatalf("unexpected merge result: %+v", got)
	}

	stale := 1
	closed := incident.StatusClosed
	if _, err := f.desk.UpdateReport(ctx, second, r.ID, incident.Patch{Status: &closed, ExpectedVersion: &stale}); !errors.Is(err, incident.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDashboardStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct {
		typ incident.Type
		sev incident.Severity
	}{
		{incident.TypeInjured, incident.SeverityCritical},
		{incident.TypeEmergency, incident.SeverityLow},
		{incident.TypeAbuse, incident.SeverityHigh},
	} {
		d := draft()
		d.Type, d.Severity = tc.typ, tc.sev
		if _, err := f.desk.CreateReport(ctx, f.user, d); err != nil {
			t.Fatalf("CreateReport: %v", err)
		}
	}

	stats, err := f.desk.DashboardStats(ctx, f.admin)
	if err != nil {
		t.Fatalf("DashboardStats: %v", err)
	}
	if stats.TotalReports != 3 || stats.CriticalReports != 2 || stats.NewReports != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// Only the admin has logged in; registration does not stamp a login.
	if stats.ActiveUsers != 1 {
		t.Fatalf("expected 1 active user, got %d", stats.ActiveUsers)
	}
	if stats.ReportsByRegion["Central Visayas"] != 3 || len(stats.ReportsByRegion) != 1 {
		t.Fatalf("unexpected region breakdown: %v", stats.ReportsByRegion)
	}
}
