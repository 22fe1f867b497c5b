// Package desk is the operation set offered to clients: sign-in, incident
// intake and triage, and the guarded administration console. Every call
// takes the caller's *auth.Session explicitly.
package desk

import (
	"errors"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/audit"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stats"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

// Publisher receives incident change events.
type Publisher interface {
	Publish(evt stream.IncidentEvent)
}

type Desk struct {
	users     *auth.Directory
	sessions  *auth.SessionManager
	guard     *auth.Guard
	incidents *incident.Store
	audit     *audit.Log
	stats     *stats.Aggregator
	events    Publisher
	now       func() time.Time
}

type settings struct {
	now          func() time.Time
	tokenTTL     time.Duration
	issuer       string
	retention    int
	activeWindow time.Duration
	events       Publisher
}

type Option func(*settings)

// WithClock drives every component from fn. Tests use it to move time.
func WithClock(fn func() time.Time) Option {
	return func(s *settings) {
		if fn != nil {
			s.now = fn
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *settings) { s.tokenTTL = ttl }
}

func WithIssuer(issuer string) Option {
	return func(s *settings) { s.issuer = issuer }
}

func WithAuditRetention(n int) Option {
	return func(s *settings) { s.retention = n }
}

func WithActiveWindow(d time.Duration) Option {
	return func(s *settings) { s.activeWindow = d }
}

func WithPublisher(p Publisher) Option {
	return func(s *settings) { s.events = p }
}

// New wires the stores on top of store and signs tokens with secret.
func New(store kv.Store, secret string, opts ...Option) (*Desk, error) {
	if store == nil {
		return nil, errors.New("desk: kv store is required")
	}
	cfg := settings{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&cfg)
	}

	users, err := auth.NewDirectory(store, auth.WithDirectoryClock(cfg.now))
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(users, secret,
		auth.WithClock(cfg.now),
		auth.WithTTL(cfg.tokenTTL),
		auth.WithIssuer(cfg.issuer),
	)
	if err != nil {
		return nil, err
	}
	guard, err := auth.NewGuard(sessions)
	if err != nil {
		return nil, err
	}
	incidents, err := incident.NewStore(store, incident.WithClock(cfg.now))
	if err != nil {
		return nil, err
	}
	trail, err := audit.NewLog(store, users, audit.WithClock(cfg.now), audit.WithRetention(cfg.retention))
	if err != nil {
		return nil, err
	}
	agg, err := stats.NewAggregator(incidents, users, stats.WithClock(cfg.now), stats.WithActiveWindow(cfg.activeWindow))
	if err != nil {
		return nil, err
	}
	return &Desk{
		users:     users,
		sessions:  sessions,
		guard:     guard,
		incidents: incidents,
		audit:     trail,
		stats:     agg,
		events:    cfg.events,
		now:       cfg.now,
	}, nil
}

// Sessions exposes token verification to transports.
func (d *Desk) Sessions() *auth.SessionManager { return d.sessions }

// Aggregator is used to register the dashboard metrics collector.
func (d *Desk) Aggregator() *stats.Aggregator { return d.stats }

func (d *Desk) publish(kind stream.Kind, r incident.Report) {
	if d.events == nil {
		return
	}
	d.events.Publish(stream.EventFor(kind, r, d.now()))
}
