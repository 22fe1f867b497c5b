package incident

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

const (
	idPrefix            = "incident"
	noteTimeLayout      = "2006-01-02 15:04:05"
	maxTrackingAttempts = 20
)

// Store keeps every report in one JSON array under kv.KeyIncidents.
// Writes are serialized per process; across processes the backing store
// is last-write-wins unless callers use Patch.ExpectedVersion.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	now    func() time.Time
	newID  func() string
	random func(n int) int
}

type Option func(*Store)

func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithRandom replaces the source of tracking number suffixes.
func WithRandom(fn func(n int) int) Option {
	return func(s *Store) {
		if fn != nil {
			s.random = fn
		}
	}
}

func NewStore(store kv.Store, opts ...Option) (*Store, error) {
	if store == nil {
		return nil, errors.New("incident: kv store is required")
	}
	s := &Store{
		kv:     store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return ids.Prefixed(idPrefix) },
		random: ids.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) []Report {
	return kv.LoadList[Report](ctx, s.kv, kv.KeyIncidents)
}

// loadForWrite fails on backend errors instead of yielding an empty list.
func (s *Store) loadForWrite(ctx context.Context) ([]Report, error) {
	reports, err := kv.LoadListStrict[Report](ctx, s.kv, kv.KeyIncidents)
	if err != nil {
		return nil, fmt.Errorf("incident: load: %w", err)
	}
	return reports, nil
}

func (s *Store) save(ctx context.Context, reports []Report) error {
	if err := kv.SaveList(ctx, s.kv, kv.KeyIncidents, reports); err != nil {
		return fmt.Errorf("incident: save: %w", err)
	}
	return nil
}

func (s *Store) trackingNumber(now time.Time, taken map[string]struct{}) (string, error) {
	for i := 0; i < maxTrackingAttempts; i++ {
		tn := fmt.Sprintf("INC-%d-%04d", now.Year(), s.random(10000))
		if _, dup := taken[tn]; !dup {
			return tn, nil
		}
	}
	return "", fmt.Errorf("incident: no free tracking number after %d attempts", maxTrackingAttempts)
}

// Create validates d and stores a new report with a server-side id,
// timestamp and tracking number. Status defaults to new.
func (s *Store) Create(ctx context.Context, d Draft) (Report, error) {
	d.Description = strings.TrimSpace(d.Description)
	if err := d.validate(); err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.loadForWrite(ctx)
	if err != nil {
		return Report{}, err
	}
	taken := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		taken[r.TrackingNumber] = struct{}{}
	}
	now := s.now()
	tn, err := s.trackingNumber(now, taken)
	if err != nil {
		return Report{}, err
	}

	r := Report{
		ID:             s.newID(),
		TrackingNumber: tn,
		Location:       d.Location,
		Type:           d.Type,
		Severity:       d.Severity,
		Status:         d.Status,
		Description:    d.Description,
		Timestamp:      now,
		Reporter:       d.Reporter,
		Photos:         d.Photos,
		Version:        1,
	}
	if r.Status == "" {
		r.Status = StatusNew
	}
	reports = append(reports, r)
	if err := s.save(ctx, reports); err != nil {
		return Report{}, err
	}
	return r, nil
}

// Update merges the non-nil fields of p into the report.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Report, error) {
	if err := p.validate(); err != nil {
		return Report{}, err
	}
	return s.mutate(ctx, id, p.ExpectedVersion, func(r *Report) error {
		p.apply(r)
		return nil
	})
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (Report, error) {
	return s.Update(ctx, id, Patch{Status: &status})
}

func (s *Store) UpdateSeverity(ctx context.Context, id string, severity Severity) (Report, error) {
	return s.Update(ctx, id, Patch{Severity: &severity})
}

func (s *Store) Assign(ctx context.Context, id, userID string) (Report, error) {
	return s.Update(ctx, id, Patch{AssignedTo: &userID})
}

// AppendNote adds "<YYYY-MM-DD hh:mm:ss>: text" to the admin notes.
func (s *Store) AppendNote(ctx context.Context, id, text string) (Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Report{}, fmt.Errorf("%w: note is empty", ErrInvalidInput)
	}
	return s.mutate(ctx, id, nil, func(r *Report) error {
		r.AdminNotes = append(r.AdminNotes, s.now().Format(noteTimeLayout)+": "+text)
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.loadForWrite(ctx)
	if err != nil {
		return err
	}
	for i, r := range reports {
		if r.ID == id {
			reports = append(reports[:i], reports[i+1:]...)
			return s.save(ctx, reports)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) mutate(ctx context.Context, id string, expected *int, fn func(*Report) error) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.loadForWrite(ctx)
	if err != nil {
		return Report{}, err
	}
	for i := range reports {
		r := &reports[i]
		if r.ID != id {
			continue
		}
		if expected != nil && *expected != r.Version {
			return Report{}, fmt.Errorf("%w: %s is at version %d, not %d", ErrConflict, id, r.Version, *expected)
		}
		if err := fn(r); err != nil {
			return Report{}, err
		}
		r.Version++
		if err := s.save(ctx, reports); err != nil {
			return Report{}, err
		}
		return *r, nil
	}
	return Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Store) ListAll(ctx context.Context) ([]Report, error) {
	return s.filter(ctx, func(Report) bool { return true }), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (Report, error) {
	found := s.filter(ctx, func(r Report) bool { return r.ID == id })
	if len(found) == 0 {
		return Report{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found[0], nil
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]Report, error) {
	return s.filter(ctx, func(r Report) bool { return r.Status == status }), nil
}

func (s *Store) ListByReporter(ctx context.Context, userID string) ([]Report, error) {
	if userID == "" {
		return []Report{}, nil
	}
	return s.filter(ctx, func(r Report) bool { return r.Reporter != nil && r.Reporter.UserID == userID }), nil
}

func (s *Store) ListCritical(ctx context.Context) ([]Report, error) {
	return s.filter(ctx, Report.Critical), nil
}

func (s *Store) filter(ctx context.Context, keep func(Report) bool) []Report {
	s.mu.Lock()
	reports := s.load(ctx)
	s.mu.Unlock()

	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
