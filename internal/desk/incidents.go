package desk

import (
	"context"
	"fmt"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

// CreateReport is open to anonymous reporters. A signed-in reporter is
// linked through Reporter.UserID, and name/contact default to the account.
func (d *Desk) CreateReport(ctx context.Context, sess *auth.Session, draft incident.Draft) (incident.Report, error) {
	user, ok, err := d.sessions.CurrentUser(ctx, sess)
	if err != nil {
		return incident.Report{}, err
	}
	if ok {
		rep := incident.Reporter{}
		if draft.Reporter != nil {
			rep = *draft.Reporter
		}
		rep.UserID = user.ID
		if rep.Name == "" {
			rep.Name = user.Name
		}
		if rep.Contact == "" {
			rep.Contact = firstNonEmpty(user.Phone, user.Email)
		}
		draft.Reporter = &rep
	} else if draft.Reporter != nil {
		rep := *draft.Reporter
		rep.UserID = ""
		draft.Reporter = &rep
	}

	r, err := d.incidents.Create(ctx, draft)
	if err != nil {
		return incident.Report{}, err
	}
	d.publish(stream.KindCreated, r)
	return r, nil
}

func (d *Desk) UpdateStatus(ctx context.Context, sess *auth.Session, id string, status incident.Status) (incident.Report, error) {
	return d.updateIncident(ctx, sess, id, audit.ActionUpdateStatus, func() (incident.Report, error) {
		return d.incidents.UpdateStatus(ctx, id, status)
	})
}

func (d *Desk) UpdateSeverity(ctx context.Context, sess *auth.Session, id string, severity incident.Severity) (incident.Report, error) {
	return d.updateIncident(ctx, sess, id, audit.ActionUpdateSeverity, func() (incident.Report, error) {
		return d.incidents.UpdateSeverity(ctx, id, severity)
	})
}

func (d *Desk) AppendNote(ctx context.Context, sess *auth.Session, id, text string) (incident.Report, error) {
	return d.updateIncident(ctx, sess, id, audit.ActionAddNote, func() (incident.Report, error) {
		return d.incidents.AppendNote(ctx, id, text)
	})
}

// Assign sets the handling admin. The assignee must be an existing user.
func (d *Desk) Assign(ctx context.Context, sess *auth.Session, id, assigneeID string) (incident.Report, error) {
	return d.updateIncident(ctx, sess, id, audit.ActionAssignIncident, func() (incident.Report, error) {
		if assigneeID != "" {
			if _, ok, err := d.users.FindByID(ctx, assigneeID); err != nil {
				return incident.Report{}, err
			} else if !ok {
				return incident.Report{}, fmt.Errorf("%w: %s", auth.ErrUserNotFound, assigneeID)
			}
		}
		return d.incidents.Assign(ctx, id, assigneeID)
	})
}

func (d *Desk) UpdateReport(ctx context.Context, sess *auth.Session, id string, p incident.Patch) (incident.Report, error) {
	return d.updateIncident(ctx, sess, id, audit.ActionUpdateIncident, func() (incident.Report, error) {
		return d.incidents.Update(ctx, id, p)
	})
}

func (d *Desk) DeleteReport(ctx context.Context, sess *auth.Session, id string) error {
	admin, err := d.guard.Authorize(ctx, sess, auth.PermIncidentsManage)
	if err != nil {
		return err
	}
	existing, err := d.incidents.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := d.incidents.Delete(ctx, id); err != nil {
		return err
	}
	d.record(ctx, admin, audit.ActionDeleteIncident, audit.ResourceIncident, id)
	d.publish(stream.KindDeleted, existing)
	return nil
}

func (d *Desk) updateIncident(ctx context.Context, sess *auth.Session, id, action string, apply func() (incident.Report, error)) (incident.Report, error) {
	admin, err := d.guard.Authorize(ctx, sess, auth.PermIncidentsManage)
	if err != nil {
		return incident.Report{}, err
	}
	r, err := apply()
	if err != nil {
		return incident.Report{}, err
	}
	d.record(ctx, admin, action, audit.ResourceIncident, id)
	d.publish(stream.KindUpdated, r)
	return r, nil
}

func (d *Desk) ListReports(ctx context.Context) ([]incident.Report, error) {
	return d.incidents.ListAll(ctx)
}

func (d *Desk) GetReport(ctx context.Context, id string) (incident.Report, error) {
	return d.incidents.GetByID(ctx, id)
}

func (d *Desk) ListReportsByStatus(ctx context.Context, status incident.Status) ([]incident.Report, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", incident.ErrInvalidInput, status)
	}
	return d.incidents.ListByStatus(ctx, status)
}

func (d *Desk) ListCritical(ctx context.Context) ([]incident.Report, error) {
	return d.incidents.ListCritical(ctx)
}

// MyReports lists the reports filed by the signed-in user.
func (d *Desk) MyReports(ctx context.Context, sess *auth.Session) ([]incident.Report, error) {
	user, ok, err := d.sessions.CurrentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not signed in", auth.ErrUnauthorized)
	}
	return d.incidents.ListByReporter(ctx, user.ID)
}

// ListReportsByReporter is available to the reporter themself and to admins.
func (d *Desk) ListReportsByReporter(ctx context.Context, sess *auth.Session, userID string) ([]incident.Report, error) {
	user, ok, err := d.sessions.CurrentUser(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: not signed in", auth.ErrUnauthorized)
	}
	if user.ID != userID && !d.guard.Can(user.Role, auth.PermIncidentsManage) {
		return nil, fmt.Errorf("%w: reports of another user", auth.ErrUnauthorized)
	}
	return d.incidents.ListByReporter(ctx, userID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
