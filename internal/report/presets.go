package report

import (
	"fmt"
	"strings"

	"github.com/goodtune/fleethours/internal/activity"
)

// Kind names a report preset.
type Kind string

const (
	KindVehicles Kind = "vehicles"
	KindDrivers  Kind = "drivers"
)

// Kinds lists every preset in a stable order.
var Kinds = []Kind{KindVehicles, KindDrivers}

// ParseKind validates a report kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindVehicles:
		return KindVehicles, nil
	case KindDrivers:
		return KindDrivers, nil
	default:
		return "", fmt.Errorf("unknown report kind: %q (must be vehicles or drivers)", s)
	}
}

// Preset is a set of queries evaluated over one shared fetch.
type Preset struct {
	Kind       Kind
	TargetType activity.TargetType
	Queries    []activity.Query
}

// Tags returns the union of event types every query needs.
func (p Preset) Tags() []activity.EventType {
	var tags []activity.EventType
	seen := make(map[activity.EventType]struct{})
	for _, q := range p.Queries {
		for _, t := range q.Tags() {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}
	return tags
}

var vehicleSessions = activity.EventTypeSet{
	Start: []activity.EventType{activity.EventCheckOut},
	End:   []activity.EventType{activity.EventCheckIn, activity.EventAdminCheckIn},
}

// VehicleStats reports check-out hours alongside mileage and battery usage.
func VehicleStats() Preset {
	return Preset{
		Kind:       KindVehicles,
		TargetType: activity.TargetVehicle,
		Queries: []activity.Query{
			{Name: "checkOut", Types: vehicleSessions},
			{Name: "mileage", Types: vehicleSessions, Attributes: []activity.Attribute{activity.AttributeMileage}},
			{Name: "battery", Types: vehicleSessions, Attributes: []activity.Attribute{activity.AttributeBattery}},
			{Name: "batteryMileage", Types: vehicleSessions, Attributes: []activity.Attribute{activity.AttributeBattery, activity.AttributeMileage}},
		},
	}
}

// DriverHours reports logged-in and available hours per driver.
func DriverHours() Preset {
	return Preset{
		Kind:       KindDrivers,
		TargetType: activity.TargetDriver,
		Queries: []activity.Query{
			{
				Name: "login",
				Types: activity.EventTypeSet{
					Start: []activity.EventType{activity.EventLogin},
					End:   []activity.EventType{activity.EventLogout},
				},
			},
			{
				Name: "available",
				Types: activity.EventTypeSet{
					Start: []activity.EventType{activity.EventAvailable},
					End:   []activity.EventType{activity.EventUnavailable, activity.EventLogout},
				},
			},
		},
	}
}

// PresetFor returns the preset of a kind.
func PresetFor(kind Kind) (Preset, error) {
	switch kind {
	case KindVehicles:
		return VehicleStats(), nil
	case KindDrivers:
		return DriverHours(), nil
	default:
		return Preset{}, fmt.Errorf("unknown report kind: %q", kind)
	}
}
