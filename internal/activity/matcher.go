package activity

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Match reconstructs sessions from one target's preprocessed events. Events
// whose type is in neither side of types are ignored. Open sessions at either
// edge of the window are closed with synthetic events at the window bounds.
//
// When attrs is non-empty a session only counts if both ends carry every
// attribute and each reading moves in its allowed direction; otherwise the
// session stays in the result with zero hours and Excluded set.
//
// With attrs exactly [mileage], minMaxMileage is the spread of every mileage
// reading in events, including event types outside types.
func Match(events []Event, types EventTypeSet, w Window, attrs []Attribute) MatchResult {
	seq := make([]Event, 0, len(events)+2)
	for _, ev := range events {
		if types.IsStart(ev.Type) || types.IsEnd(ev.Type) {
			seq = append(seq, ev)
		}
	}

	result := MatchResult{
		Sessions:        []Session{},
		TotalAttributes: make(map[Attribute]float64),
	}
	if len(seq) == 0 {
		return result
	}

	seq = closeBoundaries(seq, types, w)

	if len(attrs) == 1 && attrs[0] == AttributeMileage {
		// boundary events copy existing readings so they cannot widen the spread
		if spread, ok := readingSpread(events, AttributeMileage); ok {
			result.TotalAttributes[AttributeMinMaxMileage] = spread
		}
	}

	m := matcher{types: types, attrs: attrs, result: result}
	for _, ev := range seq {
		m.step(ev)
	}
	return m.result
}

// matcher folds a time-ordered sequence into sessions. open holds the most
// recent start of the current run of start events.
type matcher struct {
	types  EventTypeSet
	attrs  []Attribute
	open   *Event
	result MatchResult
}

func (m *matcher) step(ev Event) {
	if m.types.IsStart(ev.Type) {
		start := ev
		m.open = &start
		return
	}
	if m.open == nil {
		// end following an end
		return
	}

	session := Session{
		Start: *m.open,
		End:   ev,
		Hours: ev.Timestamp.Sub(m.open.Timestamp).Hours(),
	}
	m.open = nil

	if len(m.attrs) > 0 {
		deltas, reason := sessionDeltas(session.Start, session.End, m.attrs)
		if reason != ExclusionNone {
			session.Hours = 0
			session.Excluded = true
			session.Reason = reason
			m.result.Excluded++
		} else {
			session.Deltas = deltas
			addAttributes(m.result.TotalAttributes, deltas)
		}
	}

	m.result.TotalHours += session.Hours
	m.result.Sessions = append(m.result.Sessions, session)
}

// closeBoundaries prepends a start at the window start when the sequence opens
// with an end, and appends an end at the window end when it closes with a start.
func closeBoundaries(seq []Event, types EventTypeSet, w Window) []Event {
	first := seq[0]
	if types.IsEnd(first.Type) {
		seq = append([]Event{boundaryEvent(first, types.Start[0], w.Local().Start, "start")}, seq...)
	}

	last := seq[len(seq)-1]
	if types.IsStart(last.Type) {
		seq = append(seq, boundaryEvent(last, types.End[0], w.Local().End, "end"))
	}
	return seq
}

func boundaryEvent(from Event, t EventType, at time.Time, side string) Event {
	ev := from
	ev.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("fleethours/boundary/"+side+"/"+from.TargetID+"/"+from.ID)).String()
	ev.Type = t
	ev.Timestamp = at
	ev.Attributes = copyAttributes(from.Attributes)
	ev.Synthetic = true
	return ev
}

// readingSpread returns max-min over every event carrying the attribute.
func readingSpread(seq []Event, a Attribute) (float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	found := false
	for _, ev := range seq {
		v, ok := ev.Reading(a)
		if !ok {
			continue
		}
		found = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !found {
		return 0, false
	}
	return hi - lo, true
}
