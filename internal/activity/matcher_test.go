package activity

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

var checkoutTypes = EventTypeSet{
	Start: []EventType{EventCheckOut},
	End:   []EventType{EventCheckIn, EventAdminCheckIn},
}

func newEvent(id string, et EventType, at time.Time, attrs map[Attribute]float64) Event {
	return Event{
		ID:         id,
		TargetID:   "vehicle-1",
		TargetType: TargetVehicle,
		LocationID: "loc-1",
		Type:       et,
		Timestamp:  at,
		Attributes: attrs,
	}
}

func window(start, end time.Time) Window {
	return Window{Start: start, End: end, Location: time.UTC}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMatch_BasicSession(t *testing.T) {
	events := []Event{
		newEvent("e1", EventCheckOut, t0, nil),
		newEvent("e2", EventCheckIn, t0.Add(2*time.Hour), nil),
	}

	res := Match(events, checkoutTypes, window(t0.Add(-time.Hour), t0.Add(3*time.Hour)), nil)

	if !approx(res.TotalHours, 2.0) {
		t.Errorf("TotalHours = %v, want 2.0", res.TotalHours)
	}
	if len(res.Sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(res.Sessions))
	}
	if res.Sessions[0].Start.ID != "e1" || res.Sessions[0].End.ID != "e2" {
		t.Errorf("Session paired %s->%s, want e1->e2", res.Sessions[0].Start.ID, res.Sessions[0].End.ID)
	}
}

func TestMatch_BoundarySynthesis(t *testing.T) {
	tests := []struct {
		name      string
		events    []Event
		window    Window
		wantHours float64
		synthetic string // "start" or "end"
	}{
		{
			name:      "leading end gets start at window start",
			events:    []Event{newEvent("e1", EventCheckIn, t0.Add(time.Hour), nil)},
			window:    window(t0, t0.Add(4*time.Hour)),
			wantHours: 1.0,
			synthetic: "start",
		},
		{
			name:      "trailing start gets end at window end",
			events:    []Event{newEvent("e1", EventCheckOut, t0, nil)},
			window:    window(t0.Add(-time.Hour), t0.Add(3*time.Hour)),
			wantHours: 3.0,
			synthetic: "end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Match(tt.events, checkoutTypes, tt.window, nil)
			if !approx(res.TotalHours, tt.wantHours) {
				t.Errorf("TotalHours = %v, want %v", res.TotalHours, tt.wantHours)
			}
			if len(res.Sessions) != 1 {
				t.Fatalf("Expected 1 session, got %d", len(res.Sessions))
			}

			s := res.Sessions[0]
			switch tt.synthetic {
			case "start":
				if !s.Start.Synthetic || s.Start.Type != EventCheckOut || !s.Start.Timestamp.Equal(tt.window.Start) {
					t.Errorf("Unexpected synthetic start: %+v", s.Start)
				}
			case "end":
				if !s.End.Synthetic || s.End.Type != EventCheckIn || !s.End.Timestamp.Equal(tt.window.End) {
					t.Errorf("Unexpected synthetic end: %+v", s.End)
				}
			}
		})
	}
}

func TestMatch_SyntheticCopiesAttributesAndIsDeterministic(t *testing.T) {
	events := []Event{newEvent("e1", EventCheckOut, t0, map[Attribute]float64{AttributeMileage: 10})}
	w := window(t0, t0.Add(time.Hour))

	first := Match(events, checkoutTypes, w, nil)
	second := Match(events, checkoutTypes, w, nil)

	end := first.Sessions[0].End
	if v, ok := end.Reading(AttributeMileage); !ok || v != 10 {
		t.Errorf("Synthetic end mileage = %v (present %v), want 10", v, ok)
	}
	if end.ID == "" || end.ID == "e1" {
		t.Errorf("Synthetic end should carry its own id, got %q", end.ID)
	}
	if end.ID != second.Sessions[0].End.ID {
		t.Errorf("Synthetic ids differ between runs: %s vs %s", end.ID, second.Sessions[0].End.ID)
	}

	// The source event must not share the copied map
	end.Attributes[AttributeMileage] = 99
	if events[0].Attributes[AttributeMileage] != 10 {
		t.Error("Synthetic event aliases the source attributes")
	}
}

func TestMatch_Empty(t *testing.T) {
	res := Match(nil, checkoutTypes, window(t0, t0.Add(time.Hour)), nil)
	if res.TotalHours != 0 || len(res.Sessions) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}

	// Only unrelated types is the same as empty
	res = Match([]Event{newEvent("e1", EventLogin, t0, nil)}, checkoutTypes, window(t0, t0.Add(time.Hour)), nil)
	if res.TotalHours != 0 || len(res.Sessions) != 0 {
		t.Errorf("Expected unrelated events to be ignored, got %+v", res)
	}
}

func TestMatch_ConsecutiveSameCategory(t *testing.T) {
	events := []Event{
		newEvent("s1", EventCheckOut, t0, nil),
		newEvent("s2", EventCheckOut, t0.Add(time.Hour), nil),
		newEvent("e1", EventCheckIn, t0.Add(2*time.Hour), nil),
		newEvent("e2", EventAdminCheckIn, t0.Add(3*time.Hour), nil),
		newEvent("s3", EventCheckOut, t0.Add(4*time.Hour), nil),
		newEvent("e3", EventCheckIn, t0.Add(4*time.Hour+30*time.Minute), nil),
	}

	res := Match(events, checkoutTypes, window(t0, t0.Add(8*time.Hour)), nil)

	if len(res.Sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(res.Sessions))
	}
	if res.Sessions[0].Start.ID != "s2" {
		t.Errorf("First session should start at the most recent start, got %s", res.Sessions[0].Start.ID)
	}
	if res.Sessions[0].End.ID != "e1" {
		t.Errorf("First session should end at the first end, got %s", res.Sessions[0].End.ID)
	}
	if !approx(res.TotalHours, 1.5) {
		t.Errorf("TotalHours = %v, want 1.5", res.TotalHours)
	}
}

func TestMatch_AttributeAccounting(t *testing.T) {
	w := window(t0.Add(-time.Hour), t0.Add(4*time.Hour))

	tests := []struct {
		name         string
		start, end   map[Attribute]float64
		attrs        []Attribute
		wantHours    float64
		wantExcluded int
		wantReason   ExclusionReason
		wantDeltas   map[Attribute]float64
	}{
		{
			name:       "battery drains",
			start:      map[Attribute]float64{AttributeBattery: 80},
			end:        map[Attribute]float64{AttributeBattery: 60},
			attrs:      []Attribute{AttributeBattery},
			wantHours:  1,
			wantDeltas: map[Attribute]float64{AttributeBattery: 20},
		},
		{
			name:         "battery increase is an anomaly",
			start:        map[Attribute]float64{AttributeBattery: 80},
			end:          map[Attribute]float64{AttributeBattery: 85},
			attrs:        []Attribute{AttributeBattery},
			wantHours:    0,
			wantExcluded: 1,
			wantReason:   ExclusionAnomaly,
			wantDeltas:   map[Attribute]float64{},
		},
		{
			name:         "missing battery reading",
			start:        map[Attribute]float64{AttributeMileage: 100},
			end:          map[Attribute]float64{AttributeMileage: 130},
			attrs:        []Attribute{AttributeMileage, AttributeBattery},
			wantHours:    0,
			wantExcluded: 1,
			wantReason:   ExclusionIncomplete,
			wantDeltas:   map[Attribute]float64{},
		},
		{
			name:         "mileage decrease is an anomaly",
			start:        map[Attribute]float64{AttributeMileage: 130, AttributeBattery: 90},
			end:          map[Attribute]float64{AttributeMileage: 100, AttributeBattery: 70},
			attrs:        []Attribute{AttributeBattery, AttributeMileage},
			wantHours:    0,
			wantExcluded: 1,
			wantReason:   ExclusionAnomaly,
			wantDeltas:   map[Attribute]float64{},
		},
		{
			name:       "battery and mileage together",
			start:      map[Attribute]float64{AttributeMileage: 100, AttributeBattery: 90},
			end:        map[Attribute]float64{AttributeMileage: 125, AttributeBattery: 70},
			attrs:      []Attribute{AttributeBattery, AttributeMileage},
			wantHours:  1,
			wantDeltas: map[Attribute]float64{AttributeBattery: 20, AttributeMileage: 25},
		},
		{
			name:         "unsupported attribute",
			start:        map[Attribute]float64{"fuel": 10},
			end:          map[Attribute]float64{"fuel": 5},
			attrs:        []Attribute{"fuel"},
			wantHours:    0,
			wantExcluded: 1,
			wantReason:   ExclusionUnsupported,
			wantDeltas:   map[Attribute]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := []Event{
				newEvent("s", EventCheckOut, t0, tt.start),
				newEvent("e", EventCheckIn, t0.Add(time.Hour), tt.end),
			}
			res := Match(events, checkoutTypes, w, tt.attrs)

			if !approx(res.TotalHours, tt.wantHours) {
				t.Errorf("TotalHours = %v, want %v", res.TotalHours, tt.wantHours)
			}
			if res.Excluded != tt.wantExcluded {
				t.Errorf("Excluded = %d, want %d", res.Excluded, tt.wantExcluded)
			}
			if len(res.Sessions) != 1 {
				t.Fatalf("Excluded sessions must stay in the list, got %d sessions", len(res.Sessions))
			}
			if res.Sessions[0].Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", res.Sessions[0].Reason, tt.wantReason)
			}
			for k, want := range tt.wantDeltas {
				if got := res.TotalAttributes[k]; !approx(got, want) {
					t.Errorf("TotalAttributes[%s] = %v, want %v", k, got, want)
				}
			}
			if len(tt.wantDeltas) == 0 && len(res.TotalAttributes) != 0 {
				t.Errorf("Expected no attribute totals, got %v", res.TotalAttributes)
			}
		})
	}
}

func TestMatch_MinMaxMileage(t *testing.T) {
	events := []Event{
		newEvent("e1", EventCheckOut, t0, map[Attribute]float64{AttributeMileage: 100}),
		newEvent("e2", EventCheckIn, t0.Add(time.Hour), map[Attribute]float64{AttributeMileage: 150}),
		newEvent("e3", EventCheckOut, t0.Add(2*time.Hour), map[Attribute]float64{AttributeMileage: 90}),
		newEvent("e4", EventCheckIn, t0.Add(3*time.Hour), map[Attribute]float64{AttributeMileage: 200}),
	}
	w := window(t0, t0.Add(4*time.Hour))

	res := Match(events, checkoutTypes, w, []Attribute{AttributeMileage})
	if got := res.TotalAttributes[AttributeMinMaxMileage]; !approx(got, 110) {
		t.Errorf("minMaxMileage = %v, want 110", got)
	}
	// Paired mileage is computed independently: 50 + 110
	if got := res.TotalAttributes[AttributeMileage]; !approx(got, 160) {
		t.Errorf("mileage = %v, want 160", got)
	}

	res = Match(events, checkoutTypes, w, []Attribute{AttributeMileage, AttributeBattery})
	if _, ok := res.TotalAttributes[AttributeMinMaxMileage]; ok {
		t.Error("minMaxMileage should only be computed when mileage is the sole attribute")
	}

	res = Match([]Event{newEvent("e1", EventCheckOut, t0, nil)}, checkoutTypes, w, []Attribute{AttributeMileage})
	if _, ok := res.TotalAttributes[AttributeMinMaxMileage]; ok {
		t.Error("minMaxMileage should be absent without readings")
	}
}

func TestMatch_MinMaxMileageCoversOtherEventTypes(t *testing.T) {
	events := []Event{
		newEvent("e1", EventCheckOut, t0, map[Attribute]float64{AttributeMileage: 100}),
		newEvent("e2", EventAdminInspection, t0.Add(30*time.Minute), map[Attribute]float64{AttributeMileage: 40}),
		newEvent("e3", EventCheckIn, t0.Add(time.Hour), map[Attribute]float64{AttributeMileage: 150}),
		newEvent("e4", EventAdminInspection, t0.Add(2*time.Hour), map[Attribute]float64{AttributeMileage: 300}),
	}

	res := Match(events, checkoutTypes, window(t0, t0.Add(4*time.Hour)), []Attribute{AttributeMileage})
	if got := res.TotalAttributes[AttributeMinMaxMileage]; !approx(got, 260) {
		t.Errorf("minMaxMileage = %v, want 260", got)
	}
	// Session pairing still ignores the inspections
	if len(res.Sessions) != 1 || !approx(res.TotalAttributes[AttributeMileage], 50) {
		t.Errorf("Expected one session with mileage 50, got %d sessions and %v",
			len(res.Sessions), res.TotalAttributes[AttributeMileage])
	}
}
