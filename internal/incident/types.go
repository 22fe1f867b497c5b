package incident

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("incident: not found")
	ErrInvalidInput = errors.New("incident: invalid input")
	ErrConflict     = errors.New("incident: version conflict")
)

type Type string

const (
	TypeAbandoned Type = "abandoned"
	TypeInjured   Type = "injured"
	TypeAbuse     Type = "abuse"
	TypeStray     Type = "stray"
	TypeOther     Type = "other"
	TypeEmergency Type = "emergency"
)

// Types lists every incident type in display order.
var Types = []Type{TypeAbandoned, TypeInjured, TypeAbuse, TypeStray, TypeOther, TypeEmergency}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

type Status string

const (
	StatusNew           Status = "new"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusClosed        Status = "closed"
)

var Statuses = []Status{StatusNew, StatusInvestigating, StatusResolved, StatusClosed}

func (t Type) Valid() bool     { return oneOf(t, Types) }
func (s Severity) Valid() bool { return oneOf(s, Severities) }
func (s Status) Valid() bool   { return oneOf(s, Statuses) }

func oneOf[T comparable](v T, set []T) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

type Location struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Address  string  `json:"address,omitempty"`
	City     string  `json:"city,omitempty"`
	Province string  `json:"province,omitempty"`
	Region   string  `json:"region,omitempty"`
	Barangay string  `json:"barangay,omitempty"`
}

func (l Location) validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, l.Lat)
	}
	if l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, l.Lng)
	}
	return nil
}

type Reporter struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	UserID  string `json:"user_id,omitempty"`
}

// Report is a stored incident. ID and Timestamp never change after Create.
type Report struct {
	ID             string    `json:"id"`
	TrackingNumber string    `json:"tracking_number"`
	Location       Location  `json:"location"`
	Type           Type      `json:"type"`
	Severity       Severity  `json:"severity"`
	Status         Status    `json:"status"`
	Description    string    `json:"description"`
	Timestamp      time.Time `json:"timestamp"`
	Reporter       *Reporter `json:"reporter,omitempty"`
	AssignedTo     string    `json:"assigned_to,omitempty"`
	AdminNotes     []string  `json:"admin_notes,omitempty"`
	Photos         []string  `json:"photos,omitempty"`
	Version        int       `json:"version"`
}

// Critical reports whether the incident counts toward the critical total.
func (r Report) Critical() bool {
	return r.Severity == SeverityCritical || r.Type == TypeEmergency
}

// Draft is the client-supplied part of a new report.
type Draft struct {
	Location    Location  `json:"location"`
	Type        Type      `json:"type"`
	Severity    Severity  `json:"severity"`
	Status      Status    `json:"status,omitempty"`
	Description string    `json:"description"`
	Reporter    *Reporter `json:"reporter,omitempty"`
	Photos      []string  `json:"photos,omitempty"`
}

const minDescriptionLen = 10

func (d Draft) validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, d.Type)
	}
	if !d.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, d.Severity)
	}
	if d.Status != "" && !d.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, d.Status)
	}
	if len([]rune(d.Description)) < minDescriptionLen {
		return fmt.Errorf("%w: description must be at least %d characters", ErrInvalidInput, minDescriptionLen)
	}
	return d.Location.validate()
}

// Patch lists the mutable fields; nil means "leave as is". There is no way
// to address ID, TrackingNumber, Timestamp or AdminNotes.
type Patch struct {
	Location    *Location `json:"location,omitempty"`
	Type        *Type     `json:"type,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Description *string   `json:"description,omitempty"`
	Reporter    *Reporter `json:"reporter,omitempty"`
	AssignedTo  *string   `json:"assigned_to,omitempty"`
	Photos      *[]string `json:"photos,omitempty"`

	// ExpectedVersion turns the update into a compare-and-swap.
	ExpectedVersion *int `json:"-"`
}

func (p Patch) validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, *p.Type)
	}
	if p.Severity != nil && !p.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, *p.Severity)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *p.Status)
	}
	if p.Location != nil {
		return p.Location.validate()
	}
	return nil
}

func (p Patch) apply(r *Report) {
	if p.Location != nil {
		r.Location = *p.Location
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Severity != nil {
		r.Severity = *p.Severity
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Reporter != nil {
		rep := *p.Reporter
		r.Reporter = &rep
	}
	if p.AssignedTo != nil {
		r.AssignedTo = *p.AssignedTo
	}
	if p.Photos != nil {
		r.Photos = append([]string(nil), (*p.Photos)...)
	}
}
