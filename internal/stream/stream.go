package stream

import (
	"context"
	"sync"
	"time"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/incident"
)

// Kind names what happened to an incident.
type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// IncidentEvent is the live-map payload for one incident change.
type IncidentEvent struct {
	Kind           Kind              `json:"kind"`
	IncidentID     string            `json:"incident_id"`
	TrackingNumber string            `json:"tracking_number,omitempty"`
	Type           incident.Type     `json:"type,omitempty"`
	Severity       incident.Severity `json:"severity,omitempty"`
	Status         incident.Status   `json:"status,omitempty"`
	Location       incident.Location `json:"location"`
	Timestamp      time.Time         `json:"timestamp"`
}

// EventFor builds the event for r. Reporter details are left out.
func EventFor(kind Kind, r incident.Report, at time.Time) IncidentEvent {
	return IncidentEvent{
		Kind:           kind,
		IncidentID:     r.ID,
		TrackingNumber: r.TrackingNumber,
		Type:           r.Type,
		Severity:       r.Severity,
		Status:         r.Status,
		Location:       r.Location,
		Timestamp:      at,
	}
}

// Stream fan-outs incident events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan IncidentEvent
	next int
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan IncidentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan IncidentEvent {
	ch := make(chan IncidentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers. Slow subscribers miss it.
func (s *Stream) Publish(evt IncidentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
