package activity

// direction is the way a reading is allowed to move across a session.
type direction int

const (
	nonIncreasing direction = iota
	nonDecreasing
)

type attributeRule struct {
	direction direction
	delta     func(start, end float64) float64
}

// attributeRules lists every attribute that can be tracked across sessions.
var attributeRules = map[Attribute]attributeRule{
	AttributeBattery: {
		direction: nonIncreasing,
		delta:     func(start, end float64) float64 { return start - end },
	},
	AttributeMileage: {
		direction: nonDecreasing,
		delta:     func(start, end float64) float64 { return end - start },
	},
}

func (r attributeRule) allows(start, end float64) bool {
	switch r.direction {
	case nonIncreasing:
		return end <= start
	case nonDecreasing:
		return end >= start
	default:
		return false
	}
}

// sessionDeltas computes every tracked attribute delta for one session. The
// reason is non-empty when the session has to be excluded.
func sessionDeltas(start, end Event, attrs []Attribute) (map[Attribute]float64, ExclusionReason) {
	for _, a := range attrs {
		if _, ok := start.Reading(a); !ok {
			return nil, ExclusionIncomplete
		}
		if _, ok := end.Reading(a); !ok {
			return nil, ExclusionIncomplete
		}
	}

	deltas := make(map[Attribute]float64, len(attrs))
	for _, a := range attrs {
		rule, ok := attributeRules[a]
		if !ok {
			return nil, ExclusionUnsupported
		}
		sv, _ := start.Reading(a)
		ev, _ := end.Reading(a)
		if !rule.allows(sv, ev) {
			return nil, ExclusionAnomaly
		}
		deltas[a] = rule.delta(sv, ev)
	}
	return deltas, ExclusionNone
}
