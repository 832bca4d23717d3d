package activity

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidWindow is returned when a reporting window is missing or empty.
	ErrInvalidWindow = errors.New("activity: invalid window")

	// ErrInvalidEventTypes is returned for empty or overlapping type sets.
	ErrInvalidEventTypes = errors.New("activity: invalid event type set")
)

// Window is a reporting interval [Start, End) expressed in a location's zone.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewWindow builds a validated window in the named time zone. An empty zone
// means UTC.
func NewWindow(start, end time.Time, timezone string) (Window, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return Window{}, fmt.Errorf("%w: unknown timezone %q: %v", ErrInvalidWindow, timezone, err)
		}
	}

	return NewWindowIn(start, end, loc)
}

// NewWindowIn builds a validated window in an already resolved location.
// A nil location means UTC.
func NewWindowIn(start, end time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := Window{Start: start.In(loc), End: end.In(loc), Location: loc}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// DayWindow returns the local calendar day containing t.
func DayWindow(t time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1), Location: loc}
}

// Validate checks that start is before end.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidWindow, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Local returns the window with both bounds converted to its time zone.
func (w Window) Local() Window {
	if w.Location == nil {
		return w
	}
	return Window{Start: w.Start.In(w.Location), End: w.End.In(w.Location), Location: w.Location}
}

// Hours returns the length of the window in hours.
func (w Window) Hours() float64 {
	return w.End.Sub(w.Start).Hours()
}

// EventTypeSet defines which event types begin and end an activity. The first
// entry of each list is used when a boundary event has to be synthesized.
type EventTypeSet struct {
	Start []EventType
	End   []EventType
}

// Validate checks the sets are non-empty and disjoint.
func (s EventTypeSet) Validate() error {
	if len(s.Start) == 0 || len(s.End) == 0 {
		return fmt.Errorf("%w: start and end types are required", ErrInvalidEventTypes)
	}
	for _, st := range s.Start {
		if s.IsEnd(st) {
			return fmt.Errorf("%w: %q is both a start and an end type", ErrInvalidEventTypes, st)
		}
	}
	return nil
}

// IsStart reports whether t begins an activity.
func (s EventTypeSet) IsStart(t EventType) bool {
	return containsType(s.Start, t)
}

// IsEnd reports whether t ends an activity.
func (s EventTypeSet) IsEnd(t EventType) bool {
	return containsType(s.End, t)
}

// Tags returns start and end types in one list.
func (s EventTypeSet) Tags() []EventType {
	out := make([]EventType, 0, len(s.Start)+len(s.End))
	out = append(out, s.Start...)
	return append(out, s.End...)
}

func containsType(list []EventType, t EventType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
