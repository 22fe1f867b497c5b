package desk

import (
	"context"
	"fmt"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stats"
)

func (d *Desk) ListUsers(ctx context.Context, sess *auth.Session) ([]auth.User, error) {
	if _, err := d.guard.Authorize(ctx, sess, auth.PermUsersManage); err != nil {
		return nil, err
	}
	return d.users.ListAll(ctx)
}

// SetUserRole changes a role. Admins may change their own role.
func (d *Desk) SetUserRole(ctx context.Context, sess *auth.Session, userID string, role auth.Role) (auth.User, error) {
	admin, err := d.guard.Authorize(ctx, sess, auth.PermUsersManage)
	if err != nil {
		return auth.User{}, err
	}
	user, err := d.users.SetRole(ctx, userID, role)
	if err != nil {
		return auth.User{}, err
	}
	d.record(ctx, admin, audit.ActionUpdateUserRole, audit.ResourceUser, userID)
	return user, nil
}

func (d *Desk) DeleteUser(ctx context.Context, sess *auth.Session, userID string) error {
	admin, err := d.guard.Authorize(ctx, sess, auth.PermUsersManage)
	if err != nil {
		return err
	}
	if admin.ID == userID {
		return fmt.Errorf("%w: %s", auth.ErrSelfDeleteForbidden, userID)
	}
	if err := d.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	d.record(ctx, admin, audit.ActionDeleteUser, audit.ResourceUser, userID)
	return nil
}

func (d *Desk) DashboardStats(ctx context.Context, sess *auth.Session) (stats.Dashboard, error) {
	if _, err := d.guard.Authorize(ctx, sess, auth.PermDashboardView); err != nil {
		return stats.Dashboard{}, err
	}
	return d.stats.Compute(ctx)
}

func (d *Desk) RecentActivity(ctx context.Context, sess *auth.Session, limit int) ([]audit.Activity, error) {
	if _, err := d.guard.Authorize(ctx, sess, auth.PermAuditView); err != nil {
		return nil, err
	}
	return d.audit.Recent(ctx, limit)
}

// record appends to the audit trail. The mutation has already happened,
// so a failed write is logged rather than returned.
func (d *Desk) record(ctx context.Context, actor auth.User, action, resource, resourceID string) {
	_, err := d.audit.Record(ctx, audit.Entry{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
	})
	if err != nil {
		obs.Warn("desk.audit_failed", map[string]any{"action": action, "resource_id": resourceID, "error": err.Error()})
	}
}
