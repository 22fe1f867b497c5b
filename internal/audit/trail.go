package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/ids"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
)

const (
	DefaultRetention = 100
	DefaultLimit     = 50
	unknownActor     = "Unknown"
)

// Action tags recorded by the desk.
const (
	ActionUpdateUserRole = "update_user_role"
	ActionDeleteUser     = "delete_user"
	ActionAssignIncident = "assign_incident"
	ActionUpdateIncident = "update_incident"
	ActionUpdateStatus   = "update_incident_status"
	ActionUpdateSeverity = "update_incident_severity"
	ActionAddNote        = "add_incident_note"
	ActionDeleteIncident = "delete_incident"
	ResourceUser         = "user"
	ResourceIncident     = "incident"
)

// Activity is one administrative action.
type Activity struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

// Entry is the caller-supplied part of an Activity.
type Entry struct {
	ActorID    string
	ActorName  string
	Action     string
	Resource   string
	ResourceID string
	IPAddress  string
}

// ActorLookup resolves actor ids to display names.
type ActorLookup interface {
	FindByID(ctx context.Context, id string) (auth.User, bool, error)
}

// Log is the bounded administrative trail stored under kv.KeyActivities.
type Log struct {
	mu        sync.Mutex
	store     kv.Store
	actors    ActorLookup
	retention int
	now       func() time.Time
	newID     func() string
}

type Option func(*Log)

func WithRetention(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.retention = n
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(l *Log) {
		if fn != nil {
			l.now = fn
		}
	}
}

func NewLog(store kv.Store, actors ActorLookup, opts ...Option) (*Log, error) {
	if store == nil {
		return nil, errors.New("audit: kv store is required")
	}
	l := &Log{
		store:     store,
		actors:    actors,
		retention: DefaultRetention,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return ids.Prefixed("activity") },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Record appends e and evicts the oldest entries beyond the retention window.
func (l *Log) Record(ctx context.Context, e Entry) (Activity, error) {
	if strings.TrimSpace(e.Action) == "" {
		return Activity{}, errors.New("audit: action is required")
	}
	a := Activity{
		ID:         l.newID(),
		UserID:     e.ActorID,
		UserName:   strings.TrimSpace(e.ActorName),
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Timestamp:  l.now(),
		IPAddress:  e.IPAddress,
	}
	if a.UserName == "" {
		a.UserName = l.resolveName(ctx, e.ActorID)
	}
	if a.IPAddress == "" {
		a.IPAddress = IPAddressFromContext(ctx)
	}

	l.mu.Lock()
	activities, err := kv.LoadListStrict[Activity](ctx, l.store, kv.KeyActivities)
	if err != nil {
		l.mu.Unlock()
		return Activity{}, fmt.Errorf("audit: load: %w", err)
	}
	activities = append(activities, a)
	if over := len(activities) - l.retention; over > 0 {
		activities = activities[over:]
	}
	err = kv.SaveList(ctx, l.store, kv.KeyActivities, activities)
	l.mu.Unlock()
	if err != nil {
		return Activity{}, fmt.Errorf("audit: save: %w", err)
	}

	if err := LogEvent(ctx, a.Action, map[string]any{
		"activity_id": a.ID,
		"user_id":     a.UserID,
		"user_name":   a.UserName,
		"resource":    a.Resource,
		"resource_id": a.ResourceID,
		"ip_address":  a.IPAddress,
	}); err != nil {
		obs.Warn("audit.log_failed", map[string]any{"error": err.Error()})
	}
	return a, nil
}

func (l *Log) resolveName(ctx context.Context, id string) string {
	if l.actors == nil || id == "" {
		return unknownActor
	}
	u, ok, err := l.actors.FindByID(ctx, id)
	if err != nil || !ok || strings.TrimSpace(u.Name) == "" {
		return unknownActor
	}
	return u.Name
}

// Recent returns up to limit activities, newest first. limit <= 0 means DefaultLimit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l.mu.Lock()
	activities := kv.LoadList[Activity](ctx, l.store, kv.KeyActivities)
	l.mu.Unlock()

	if len(activities) > limit {
		activities = activities[len(activities)-limit:]
	}
	out := make([]Activity, len(activities))
	for i, a := range activities {
		out[len(activities)-1-i] = a
	}
	return out, nil
}
