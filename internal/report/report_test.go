package report

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/fleethours/internal/activity"
	"github.com/rs/zerolog"
)

type fakeFetcher struct {
	mu     sync.Mutex
	events []activity.Event
	calls  int
	err    error
}

func (f *fakeFetcher) FetchEvents(ctx context.Context, locationID string, w activity.Window, types []activity.EventType) ([]activity.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	wanted := make(map[activity.EventType]bool)
	for _, t := range types {
		wanted[t] = true
	}

	var out []activity.Event
	for _, ev := range f.events {
		if ev.LocationID == locationID && wanted[ev.Type] {
			out = append(out, ev)
		}
	}
	return out, nil
}

type staticNames map[string]string

func (s staticNames) ResolveNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if n, ok := s[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ev(id, target string, tt activity.TargetType, et activity.EventType, ts time.Time, attrs map[activity.Attribute]float64) activity.Event {
	return activity.Event{ID: id, TargetID: target, TargetType: tt, LocationID: "loc-1", Type: et, Timestamp: ts, Attributes: attrs}
}

func fleetEvents() []activity.Event {
	v, d := activity.TargetVehicle, activity.TargetDriver
	return []activity.Event{
		ev("1", "veh-1", v, activity.EventCheckOut, at(9, 0), map[activity.Attribute]float64{"mileage": 100, "battery": 90}),
		ev("2", "veh-2", v, activity.EventCheckOut, at(10, 0), map[activity.Attribute]float64{"mileage": 50, "battery": 80}),
		ev("3", "veh-1", v, activity.EventCheckIn, at(11, 0), map[activity.Attribute]float64{"mileage": 130, "battery": 70}),
		ev("4", "veh-2", v, activity.EventAdminCheckIn, at(12, 0), map[activity.Attribute]float64{"mileage": 60}),
		ev("5", "veh-2", v, activity.EventAdminInspection, at(12, 20), map[activity.Attribute]float64{"battery": 75}),
		ev("6", "drv-1", d, activity.EventLogin, at(9, 0), nil),
		ev("7", "drv-1", d, activity.EventAvailable, at(9, 30), nil),
		ev("8", "drv-1", d, activity.EventUnavailable, at(10, 30), nil),
		ev("9", "drv-1", d, activity.EventLogout, at(12, 0), nil),
	}
}

func newTestGenerator(f activity.Fetcher) *Generator {
	agg := activity.NewAggregator(f, staticNames{"veh-1": "Van 1", "drv-1": "Ada"}, activity.Config{}, zerolog.Nop())
	clock := FixedClock(day.Add(24*time.Hour + 15*time.Minute))
	return NewGenerator(agg, staticNames{"loc-1": "Airport"}, clock, zerolog.Nop())
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGenerate_VehicleStats(t *testing.T) {
	f := &fakeFetcher{events: fleetEvents()}
	g := newTestGenerator(f)

	rep, err := g.Generate(context.Background(), KindVehicles, activity.DayWindow(day, time.UTC), []string{"loc-1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if f.calls != 1 {
		t.Errorf("Expected one shared fetch, got %d", f.calls)
	}
	if len(rep.Metrics) != 4 {
		t.Errorf("Expected 4 metrics, got %v", rep.Metrics)
	}
	if len(rep.Locations) != 1 || rep.Locations[0].LocationName != "Airport" {
		t.Fatalf("Unexpected locations: %+v", rep.Locations)
	}

	loc := rep.Locations[0]
	if len(loc.Rows) != 2 {
		t.Fatalf("Expected only vehicle rows, got %d", len(loc.Rows))
	}
	if loc.Rows[0].TargetID != "veh-1" || loc.Rows[0].DisplayName != "Van 1" {
		t.Errorf("Named vehicle should sort first, got %+v", loc.Rows[0])
	}

	tests := []struct {
		metric string
		hours  float64
		attr   activity.Attribute
		value  float64
	}{
		{"checkOut", 4, "", 0},
		{"mileage", 4, activity.AttributeMileage, 40},
		{"mileage", 4, activity.AttributeMinMaxMileage, 40},
		// veh-2's battery reading comes from the folded inspection
		{"battery", 4, activity.AttributeBattery, 25},
		{"batteryMileage", 4, activity.AttributeMileage, 40},
	}

	for _, tt := range tests {
		t.Run(tt.metric+"/"+string(tt.attr), func(t *testing.T) {
			totals := loc.Totals[tt.metric]
			if !near(totals.Hours, tt.hours) {
				t.Errorf("%s hours = %v, want %v", tt.metric, totals.Hours, tt.hours)
			}
			if tt.attr != "" && !near(totals.Attributes[tt.attr], tt.value) {
				t.Errorf("%s %s = %v, want %v", tt.metric, tt.attr, totals.Attributes[tt.attr], tt.value)
			}
		})
	}

	if !rep.GeneratedAt.Equal(day.Add(24*time.Hour + 15*time.Minute)) {
		t.Errorf("Unexpected generated_at: %s", rep.GeneratedAt)
	}
}

func TestGenerate_DriverHours(t *testing.T) {
	g := newTestGenerator(&fakeFetcher{events: fleetEvents()})

	rep, err := g.Generate(context.Background(), KindDrivers, activity.DayWindow(day, time.UTC), []string{"loc-1"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	rows := rep.Locations[0].Rows
	if len(rows) != 1 || rows[0].DisplayName != "Ada" {
		t.Fatalf("Expected one driver row, got %+v", rows)
	}
	if !near(rows[0].Metrics["login"].Hours, 3) {
		t.Errorf("login hours = %v, want 3", rows[0].Metrics["login"].Hours)
	}
	if !near(rows[0].Metrics["available"].Hours, 1) {
		t.Errorf("available hours = %v, want 1", rows[0].Metrics["available"].Hours)
	}
}

func TestGenerate_Errors(t *testing.T) {
	g := newTestGenerator(&fakeFetcher{err: errors.New("timeout")})

	_, err := g.Generate(context.Background(), KindVehicles, activity.DayWindow(day, time.UTC), []string{"loc-1"})
	if !errors.Is(err, activity.ErrUpstreamFetch) {
		t.Errorf("Expected ErrUpstreamFetch, got %v", err)
	}

	_, err = g.Generate(context.Background(), "trucks", activity.DayWindow(day, time.UTC), nil)
	if err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestPreset_Tags(t *testing.T) {
	tags := VehicleStats().Tags()
	if len(tags) != 4 {
		t.Errorf("Expected 4 distinct vehicle tags, got %v", tags)
	}

	tags = DriverHours().Tags()
	if len(tags) != 4 {
		t.Errorf("Expected 4 distinct driver tags, got %v", tags)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Vehicles"); err != nil || k != KindVehicles {
		t.Errorf("ParseKind(Vehicles) = %q, %v", k, err)
	}
	if _, err := ParseKind("trucks"); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
