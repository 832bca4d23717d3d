package activity

import "sort"

// Metric is one named aggregation to merge. Attributes lists the tracked
// readings so rows get zero values even when nothing was accepted.
type Metric struct {
	Name       string
	Attributes []Attribute
	Locations  []LocationAggregate
}

// MetricValues is a single metric's contribution to a row or location.
type MetricValues struct {
	Hours      float64               `json:"hours"`
	Attributes map[Attribute]float64 `json:"attributes"`
	Excluded   int                   `json:"excluded"`
}

// MetricTotals are location-level totals for one metric.
type MetricTotals struct {
	MetricValues
	Targets int `json:"targets"`
}

// MergedReportRow joins every metric for one target in one location.
type MergedReportRow struct {
	LocationID   string                  `json:"location_id"`
	LocationName string                  `json:"location_name"`
	TargetID     string                  `json:"target_id"`
	DisplayName  string                  `json:"display_name"`
	Metrics      map[string]MetricValues `json:"metrics"`
}

// MergedLocation groups the merged rows of one location.
type MergedLocation struct {
	LocationID   string                  `json:"location_id"`
	LocationName string                  `json:"location_name"`
	Totals       map[string]MetricTotals `json:"totals"`
	Rows         []MergedReportRow       `json:"rows"`
}

// Merge combines aggregations computed over the same window into one report.
// Every target seen in any metric gets a row; metrics that did not see it
// contribute zeros. Rows are sorted by display name and locations by name,
// empty names last.
func Merge(metrics []Metric, locationNames map[string]string) []MergedLocation {
	keys := make(map[string][]Attribute, len(metrics))
	index := make([]map[string]*LocationAggregate, len(metrics))
	var locOrder []string
	locSeen := make(map[string]struct{})

	for i, m := range metrics {
		keys[m.Name] = attributeKeys(m.Attributes, m.Locations)
		index[i] = make(map[string]*LocationAggregate, len(m.Locations))
		for j := range m.Locations {
			loc := &m.Locations[j]
			index[i][loc.LocationID] = loc
			if _, ok := locSeen[loc.LocationID]; !ok {
				locSeen[loc.LocationID] = struct{}{}
				locOrder = append(locOrder, loc.LocationID)
			}
		}
	}

	out := make([]MergedLocation, 0, len(locOrder))
	for _, locID := range locOrder {
		merged := MergedLocation{
			LocationID:   locID,
			LocationName: locationNames[locID],
			Totals:       make(map[string]MetricTotals, len(metrics)),
		}

		var targetOrder []string
		names := make(map[string]string)
		perMetric := make([]map[string]*TargetAggregate, len(metrics))

		for i, m := range metrics {
			perMetric[i] = make(map[string]*TargetAggregate)
			totals := MetricTotals{MetricValues: MetricValues{Attributes: zeroFilled(nil, keys[m.Name])}}

			if loc, ok := index[i][locID]; ok {
				totals.Hours = loc.TotalHours
				totals.Excluded = loc.Excluded
				totals.Targets = len(loc.Targets)
				totals.Attributes = zeroFilled(loc.TotalAttributes, keys[m.Name])

				for j := range loc.Targets {
					t := &loc.Targets[j]
					if _, ok := names[t.TargetID]; !ok {
						names[t.TargetID] = ""
						targetOrder = append(targetOrder, t.TargetID)
					}
					if names[t.TargetID] == "" {
						names[t.TargetID] = t.Name()
					}
					perMetric[i][t.TargetID] = t
				}
			}
			merged.Totals[m.Name] = totals
		}

		merged.Rows = make([]MergedReportRow, 0, len(targetOrder))
		for _, targetID := range targetOrder {
			row := MergedReportRow{
				LocationID:   locID,
				LocationName: merged.LocationName,
				TargetID:     targetID,
				DisplayName:  names[targetID],
				Metrics:      make(map[string]MetricValues, len(metrics)),
			}
			for i, m := range metrics {
				values := MetricValues{Attributes: zeroFilled(nil, keys[m.Name])}
				if t, ok := perMetric[i][targetID]; ok {
					values.Hours = t.TotalHours
					values.Excluded = t.Excluded
					values.Attributes = zeroFilled(t.TotalAttributes, keys[m.Name])
				}
				row.Metrics[m.Name] = values
			}
			merged.Rows = append(merged.Rows, row)
		}

		sort.SliceStable(merged.Rows, func(i, j int) bool {
			a, b := merged.Rows[i], merged.Rows[j]
			return nameLess(a.DisplayName, a.TargetID, b.DisplayName, b.TargetID)
		})
		out = append(out, merged)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return nameLess(out[i].LocationName, out[i].LocationID, out[j].LocationName, out[j].LocationID)
	})
	return out
}

// nameLess orders by name with empty names last, then by id.
func nameLess(nameA, idA, nameB, idB string) bool {
	if (nameA == "") != (nameB == "") {
		return nameB == ""
	}
	if nameA != nameB {
		return nameA < nameB
	}
	return idA < idB
}

func attributeKeys(tracked []Attribute, locs []LocationAggregate) []Attribute {
	seen := make(map[Attribute]struct{})
	var keys []Attribute
	addKey := func(k Attribute) {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	add := func(m map[Attribute]float64) {
		for k := range m {
			addKey(k)
		}
	}

	for _, a := range tracked {
		addKey(a)
	}
	if len(tracked) == 1 && tracked[0] == AttributeMileage {
		addKey(AttributeMinMaxMileage)
	}
	for _, loc := range locs {
		add(loc.TotalAttributes)
		for _, t := range loc.Targets {
			add(t.TotalAttributes)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func zeroFilled(values map[Attribute]float64, keys []Attribute) map[Attribute]float64 {
	out := make(map[Attribute]float64, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}
