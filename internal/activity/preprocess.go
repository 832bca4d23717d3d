package activity

import (
	"sort"
	"time"
)

// FoldWindow is how close an inspection must follow an admin check-in to be
// folded into it.
const FoldWindow = 60 * time.Minute

// Preprocess sorts one target's events by time and folds administrative
// inspections into the admin check-in they follow. Inspections that cannot be
// folded are dropped. The input is left untouched.
func Preprocess(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]Event, 0, len(sorted))
	for _, ev := range sorted {
		if ev.Type != EventAdminInspection {
			out = append(out, ev)
			continue
		}

		if len(out) == 0 {
			continue
		}
		prev := &out[len(out)-1]
		if prev.Type != EventAdminCheckIn || ev.Timestamp.Sub(prev.Timestamp) >= FoldWindow {
			continue
		}

		merged := copyAttributes(prev.Attributes)
		if merged == nil {
			merged = make(map[Attribute]float64, len(ev.Attributes))
		}
		for k, v := range ev.Attributes {
			merged[k] = v
		}
		prev.Attributes = merged
	}

	return out
}
