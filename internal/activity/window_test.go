package activity

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindow(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		timezone string
		wantErr  bool
	}{
		{"valid utc", t0, t0.Add(time.Hour), "", false},
		{"valid zone", t0, t0.Add(time.Hour), "America/New_York", false},
		{"empty window", t0, t0, "", true},
		{"reversed", t0.Add(time.Hour), t0, "", true},
		{"zero start", time.Time{}, t0, "", true},
		{"bad zone", t0, t0.Add(time.Hour), "Mars/Olympus", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWindow(tt.start, tt.end, tt.timezone)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWindow) {
					t.Fatalf("Expected ErrInvalidWindow, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWindow failed: %v", err)
			}
			if !w.Start.Equal(tt.start) || !w.End.Equal(tt.end) {
				t.Errorf("Window bounds changed: %s - %s", w.Start, w.End)
			}
		})
	}
}

func TestNewWindowIn(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	w, err := NewWindowIn(t0, t0.Add(time.Hour), ny)
	if err != nil {
		t.Fatalf("NewWindowIn failed: %v", err)
	}
	if w.Location != ny {
		t.Errorf("Expected the given location to be kept, got %v", w.Location)
	}
	if w.Start.Location() != ny || !w.Start.Equal(t0) {
		t.Errorf("Unexpected start: %s", w.Start)
	}

	w, err = NewWindowIn(t0, t0.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("NewWindowIn failed: %v", err)
	}
	if w.Location != time.UTC {
		t.Errorf("Expected UTC for a nil location, got %v", w.Location)
	}

	if _, err := NewWindowIn(t0, t0, ny); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}
}

func TestDayWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 02:00 UTC on the 15th is still the 14th in New York
	w := DayWindow(time.Date(2024, 1, 15, 2, 0, 0, 0, time.UTC), ny)

	if w.Start.Day() != 14 || w.Start.Hour() != 0 {
		t.Errorf("Expected local midnight on the 14th, got %s", w.Start)
	}
	if w.Hours() != 24 {
		t.Errorf("Expected a 24h window, got %v", w.Hours())
	}
}

func TestEventTypeSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		set     EventTypeSet
		wantErr bool
	}{
		{"checkout", checkoutTypes, false},
		{"missing end", EventTypeSet{Start: []EventType{EventLogin}}, true},
		{"missing start", EventTypeSet{End: []EventType{EventLogout}}, true},
		{"overlap", EventTypeSet{Start: []EventType{EventLogin}, End: []EventType{EventLogout, EventLogin}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidEventTypes) {
				t.Errorf("Expected ErrInvalidEventTypes, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestParseEventType(t *testing.T) {
	et, err := ParseEventType(" admin check-in ")
	if err != nil {
		t.Fatalf("ParseEventType failed: %v", err)
	}
	if et != EventAdminCheckIn {
		t.Errorf("Expected %q, got %q", EventAdminCheckIn, et)
	}

	if _, err := ParseEventType("REFUEL"); err == nil {
		t.Error("Expected error for unknown event type")
	}
}
