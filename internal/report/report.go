package report

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/fleethours/internal/activity"
	"github.com/goodtune/fleethours/internal/metrics"
	"github.com/rs/zerolog"
)

// Report is a merged, multi-metric report over one window.
type Report struct {
	Kind        Kind                      `json:"kind"`
	WindowStart time.Time                 `json:"window_start"`
	WindowEnd   time.Time                 `json:"window_end"`
	Timezone    string                    `json:"timezone"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Metrics     []string                  `json:"metrics"`
	Locations   []activity.MergedLocation `json:"locations"`
}

// Generator builds reports from presets.
type Generator struct {
	aggregator    *activity.Aggregator
	locationNames activity.NameResolver
	clock         Clock
	logger        zerolog.Logger
}

// NewGenerator creates a new report generator. locationNames may be nil.
func NewGenerator(aggregator *activity.Aggregator, locationNames activity.NameResolver, clock Clock, logger zerolog.Logger) *Generator {
	if clock == nil {
		clock = SystemClock()
	}
	return &Generator{
		aggregator:    aggregator,
		locationNames: locationNames,
		clock:         clock,
		logger:        logger.With().Str("component", "report").Logger(),
	}
}

// Generate fetches every location once and evaluates all of the preset's
// queries over the shared events.
func (g *Generator) Generate(ctx context.Context, kind Kind, w activity.Window, locations []string) (*Report, error) {
	preset, err := PresetFor(kind)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	rep, err := g.generate(ctx, preset, w, locations)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ReportsGenerated.WithLabelValues(string(kind), status).Inc()
	metrics.ReportDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())

	if err != nil {
		g.logger.Error().Err(err).Str("kind", string(kind)).Msg("Report generation failed")
		return nil, err
	}

	g.logger.Info().
		Str("kind", string(kind)).
		Time("window_start", rep.WindowStart).
		Time("window_end", rep.WindowEnd).
		Int("locations", len(rep.Locations)).
		Msg("Report generated")

	return rep, nil
}

func (g *Generator) generate(ctx context.Context, preset Preset, w activity.Window, locations []string) (*Report, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	fetched, err := g.aggregator.FetchAll(ctx, w, locations, preset.Tags())
	if err != nil {
		return nil, err
	}
	fetched = onlyTargetType(fetched, preset.TargetType)

	metricList := make([]activity.Metric, 0, len(preset.Queries))
	names := make([]string, 0, len(preset.Queries))
	for _, q := range preset.Queries {
		aggs, err := g.aggregator.AggregateEvents(ctx, w, fetched, q)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate %s: %w", q.Name, err)
		}
		metricList = append(metricList, activity.Metric{Name: q.Name, Attributes: q.Attributes, Locations: aggs})
		names = append(names, q.Name)
	}

	local := w.Local()
	timezone := "UTC"
	if local.Location != nil {
		timezone = local.Location.String()
	}

	return &Report{
		Kind:        preset.Kind,
		WindowStart: local.Start,
		WindowEnd:   local.End,
		Timezone:    timezone,
		GeneratedAt: g.clock.Now(),
		Metrics:     names,
		Locations:   activity.Merge(metricList, g.resolveLocations(ctx, locations)),
	}, nil
}

func (g *Generator) resolveLocations(ctx context.Context, locations []string) map[string]string {
	if g.locationNames == nil || len(locations) == 0 {
		return nil
	}
	names, err := g.locationNames.ResolveNames(ctx, locations)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to resolve location names")
		return nil
	}
	return names
}

// onlyTargetType drops events recorded against other kinds of target.
func onlyTargetType(fetched []activity.LocationEvents, tt activity.TargetType) []activity.LocationEvents {
	out := make([]activity.LocationEvents, len(fetched))
	for i, le := range fetched {
		events := make([]activity.Event, 0, len(le.Events))
		for _, ev := range le.Events {
			if ev.TargetType == tt {
				events = append(events, ev)
			}
		}
		out[i] = activity.LocationEvents{LocationID: le.LocationID, Events: events}
	}
	return out
}
