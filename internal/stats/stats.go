// Package stats derives dashboard figures from the current incident and
// user collections. Nothing is cached; every call recomputes from scratch.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
)

const (
	DefaultActiveWindow = 30 * 24 * time.Hour
	unknownRegion       = "Unknown"
)

type Dashboard struct {
	TotalReports      int                       `json:"total_reports"`
	CriticalReports   int                       `json:"critical_reports"`
	NewReports        int                       `json:"new_reports"`
	ResolvedReports   int                       `json:"resolved_reports"`
	ActiveUsers       int                       `json:"active_users"`
	ReportsByType     map[incident.Type]int     `json:"reports_by_type"`
	ReportsByStatus   map[incident.Status]int   `json:"reports_by_status"`
	ReportsBySeverity map[incident.Severity]int `json:"reports_by_severity"`
	ReportsByRegion   map[string]int            `json:"reports_by_region"`
}

type IncidentLister interface {
	ListAll(ctx context.Context) ([]incident.Report, error)
}

type UserLister interface {
	ListAll(ctx context.Context) ([]auth.User, error)
}

type Aggregator struct {
	incidents IncidentLister
	users     UserLister
	window    time.Duration
	now       func() time.Time
}

type Option func(*Aggregator)

func WithClock(fn func() time.Time) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.now = fn
		}
	}
}

// WithActiveWindow sets how recent a login must be to count as active.
func WithActiveWindow(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.window = d
		}
	}
}

func NewAggregator(incidents IncidentLister, users UserLister, opts ...Option) (*Aggregator, error) {
	if incidents == nil || users == nil {
		return nil, errors.New("stats: incident and user sources are required")
	}
	a := &Aggregator{
		incidents: incidents,
		users:     users,
		window:    DefaultActiveWindow,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Aggregator) Compute(ctx context.Context) (Dashboard, error) {
	reports, err := a.incidents.ListAll(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("stats: list incidents: %w", err)
	}
	users, err := a.users.ListAll(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("stats: list users: %w", err)
	}
	return Summarize(reports, users, a.now(), a.window), nil
}

// Summarize is the pure form of Compute.
func Summarize(reports []incident.Report, users []auth.User, now time.Time, window time.Duration) Dashboard {
	d := Dashboard{
		TotalReports:      len(reports),
		ReportsByType:     make(map[incident.Type]int, len(incident.Types)),
		ReportsByStatus:   make(map[incident.Status]int, len(incident.Statuses)),
		ReportsBySeverity: make(map[incident.Severity]int, len(incident.Severities)),
		ReportsByRegion:   map[string]int{},
	}
	for _, t := range incident.Types {
		d.ReportsByType[t] = 0
	}
	for _, s := range incident.Statuses {
		d.ReportsByStatus[s] = 0
	}
	for _, s := range incident.Severities {
		d.ReportsBySeverity[s] = 0
	}

	for _, r := range reports {
		if r.Critical() {
			d.CriticalReports++
		}
		switch r.Status {
		case incident.StatusNew:
			d.NewReports++
		case incident.StatusResolved, incident.StatusClosed:
			d.ResolvedReports++
		}
		d.ReportsByType[r.Type]++
		d.ReportsByStatus[r.Status]++
		d.ReportsBySeverity[r.Severity]++

		region := r.Location.Region
		if region == "" {
			region = unknownRegion
		}
		d.ReportsByRegion[region]++
	}

	cutoff := now.Add(-window)
	for _, u := range users {
		if u.LastLogin != nil && !u.LastLogin.Before(cutoff) {
			d.ActiveUsers++
		}
	}
	return d
}
