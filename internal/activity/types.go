package activity

import (
	"fmt"
	"strings"
	"time"
)

// TargetType identifies the kind of tracked entity an event belongs to.
type TargetType string

const (
	TargetDriver  TargetType = "Driver"
	TargetVehicle TargetType = "Vehicle"
)

// ParseTargetType normalizes a target type tag.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "driver":
		return TargetDriver, nil
	case "vehicle":
		return TargetVehicle, nil
	default:
		return "", fmt.Errorf("unknown target type: %q", s)
	}
}

// EventType is a state-change tag recorded against a target.
type EventType string

const (
	EventCheckOut        EventType = "CHECK-OUT"
	EventCheckIn         EventType = "CHECK-IN"
	EventAdminCheckIn    EventType = "ADMIN CHECK-IN"
	EventAdminInspection EventType = "ADMIN INSPECTION"
	EventLogin           EventType = "LOGIN"
	EventLogout          EventType = "LOGOUT"
	EventAvailable       EventType = "AVAILABLE"
	EventUnavailable     EventType = "UNAVAILABLE"
)

var knownEventTypes = map[EventType]struct{}{
	EventCheckOut:        {},
	EventCheckIn:         {},
	EventAdminCheckIn:    {},
	EventAdminInspection: {},
	EventLogin:           {},
	EventLogout:          {},
	EventAvailable:       {},
	EventUnavailable:     {},
}

// ParseEventType validates an event type tag against the known set.
func ParseEventType(s string) (EventType, error) {
	et := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownEventTypes[et]; !ok {
		return "", fmt.Errorf("unknown event type: %q", s)
	}
	return et, nil
}

// Attribute names a numeric reading carried by an event.
type Attribute string

const (
	AttributeBattery Attribute = "battery"
	AttributeMileage Attribute = "mileage"

	// AttributeMinMaxMileage is derived, never read from an event.
	AttributeMinMaxMileage Attribute = "minMaxMileage"
)

// ParseAttribute validates a tracked attribute name.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(strings.TrimSpace(s))
	if _, ok := attributeRules[a]; !ok {
		return "", fmt.Errorf("unsupported attribute: %q", s)
	}
	return a, nil
}

// Event is a single immutable state change for a target.
type Event struct {
	ID         string                `json:"id"`
	TargetID   string                `json:"target_id"`
	TargetType TargetType            `json:"target_type"`
	LocationID string                `json:"location_id"`
	Type       EventType             `json:"event_type"`
	Timestamp  time.Time             `json:"timestamp"`
	Attributes map[Attribute]float64 `json:"attributes,omitempty"`
	Synthetic  bool                  `json:"synthetic,omitempty"`
}

// Reading returns the value of an attribute and whether it is present.
func (e Event) Reading(a Attribute) (float64, bool) {
	v, ok := e.Attributes[a]
	return v, ok
}

func copyAttributes(in map[Attribute]float64) map[Attribute]float64 {
	if in == nil {
		return nil
	}
	out := make(map[Attribute]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ExclusionReason explains why a session contributes nothing to totals.
type ExclusionReason string

const (
	ExclusionNone        ExclusionReason = ""
	ExclusionIncomplete  ExclusionReason = "incomplete"
	ExclusionAnomaly     ExclusionReason = "anomaly"
	ExclusionUnsupported ExclusionReason = "unsupported"
)

// Session is a reconstructed start/end pair.
type Session struct {
	Start    Event                 `json:"start"`
	End      Event                 `json:"end"`
	Hours    float64               `json:"hours"`
	Deltas   map[Attribute]float64 `json:"deltas,omitempty"`
	Excluded bool                  `json:"excluded,omitempty"`
	Reason   ExclusionReason       `json:"reason,omitempty"`
}

// MatchResult is the outcome of matching one target's events.
type MatchResult struct {
	Sessions        []Session             `json:"sessions"`
	TotalHours      float64               `json:"total_hours"`
	TotalAttributes map[Attribute]float64 `json:"total_attributes"`
	Excluded        int                   `json:"excluded"`
}

// TargetAggregate holds one target's totals within one location.
type TargetAggregate struct {
	TargetID        string                `json:"target_id"`
	TargetType      TargetType            `json:"target_type,omitempty"`
	DisplayName     *string               `json:"display_name"`
	TotalHours      float64               `json:"total_hours"`
	TotalAttributes map[Attribute]float64 `json:"total_attributes"`
	Sessions        []Session             `json:"sessions"`
	Excluded        int                   `json:"excluded"`
}

// Name returns the display name or an empty string.
func (t TargetAggregate) Name() string {
	if t.DisplayName == nil {
		return ""
	}
	return *t.DisplayName
}

// LocationAggregate sums every target aggregate of one location.
type LocationAggregate struct {
	LocationID      string                `json:"location_id"`
	TotalHours      float64               `json:"total_hours"`
	TotalAttributes map[Attribute]float64 `json:"total_attributes"`
	Excluded        int                   `json:"excluded"`
	Targets         []TargetAggregate     `json:"targets"`
}

func addAttributes(dst, src map[Attribute]float64) {
	for k, v := range src {
		dst[k] += v
	}
}
