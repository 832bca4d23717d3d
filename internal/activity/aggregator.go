package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/fleethours/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUpstreamFetch matches any *FetchError.
var ErrUpstreamFetch = errors.New("activity: upstream fetch failed")

// FetchError reports a failed event fetch for one location.
type FetchError struct {
	LocationID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch events for location %s: %v", e.LocationID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstreamFetch) match.
func (e *FetchError) Is(target error) bool { return target == ErrUpstreamFetch }

// Fetcher returns the events of one location inside a window, ordered by time.
type Fetcher interface {
	FetchEvents(ctx context.Context, locationID string, w Window, types []EventType) ([]Event, error)
}

// NameResolver maps ids to display names. Unknown ids are simply absent.
type NameResolver interface {
	ResolveNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Query is one metric: which events open and close a session and which
// readings to account for.
type Query struct {
	Name       string
	Types      EventTypeSet
	Attributes []Attribute
}

// Validate checks the event type set.
func (q Query) Validate() error {
	return q.Types.Validate()
}

// Tags returns the event types that have to be fetched for the query.
// Inspections are included when readings are tracked so they can be folded.
func (q Query) Tags() []EventType {
	tags := q.Types.Tags()
	if len(q.Attributes) > 0 && !containsType(tags, EventAdminInspection) {
		tags = append(tags, EventAdminInspection)
	}
	return tags
}

// LocationEvents is the fetched event list of one location.
type LocationEvents struct {
	LocationID string
	Events     []Event
}

// Config holds aggregator configuration
type Config struct {
	FetchConcurrency int
	FetchTimeout     time.Duration
}

// Aggregator computes per-target and per-location totals.
type Aggregator struct {
	fetcher     Fetcher
	names       NameResolver
	concurrency int
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewAggregator creates a new aggregator. names may be nil.
func NewAggregator(fetcher Fetcher, names NameResolver, config Config, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		fetcher:     fetcher,
		names:       names,
		concurrency: config.FetchConcurrency,
		timeout:     config.FetchTimeout,
		logger:      logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate fetches the query's events for every location and aggregates them.
func (a *Aggregator) Aggregate(ctx context.Context, w Window, locations []string, q Query) ([]LocationAggregate, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fetched, err := a.FetchAll(ctx, w, locations, q.Tags())
	if err != nil {
		return nil, err
	}
	return a.AggregateEvents(ctx, w, fetched, q)
}

// FetchAll fetches every location concurrently. The first failure cancels the
// remaining fetches and fails the whole call.
func (a *Aggregator) FetchAll(ctx context.Context, w Window, locations []string, tags []EventType) ([]LocationEvents, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	results := make([]LocationEvents, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}

	for i, loc := range locations {
		g.Go(func() error {
			fctx := gctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, a.timeout)
				defer cancel()
			}

			started := time.Now()
			events, err := a.fetcher.FetchEvents(fctx, loc, w, tags)
			metrics.FetchDuration.WithLabelValues(loc).Observe(time.Since(started).Seconds())
			if err != nil {
				metrics.FetchErrors.WithLabelValues(loc).Inc()
				a.logger.Error().Err(err).Str("location_id", loc).Msg("Failed to fetch events")
				return &FetchError{LocationID: loc, Err: err}
			}

			a.logger.Debug().
				Str("location_id", loc).
				Int("events", len(events)).
				Dur("took", time.Since(started)).
				Msg("Fetched location events")

			results[i] = LocationEvents{LocationID: loc, Events: events}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// AggregateEvents aggregates already fetched events without touching the
// fetcher. Given the same input and name answers the output is identical.
func (a *Aggregator) AggregateEvents(ctx context.Context, w Window, fetched []LocationEvents, q Query) ([]LocationAggregate, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	w = w.Local()

	out := make([]LocationAggregate, 0, len(fetched))
	var ids []string
	seen := make(map[string]struct{})

	for _, le := range fetched {
		order, byTarget := groupByTarget(le.Events)

		loc := LocationAggregate{
			LocationID:      le.LocationID,
			TotalAttributes: make(map[Attribute]float64),
			Targets:         make([]TargetAggregate, 0, len(order)),
		}

		for _, targetID := range order {
			events := byTarget[targetID]
			res := Match(Preprocess(events), q.Types, w, q.Attributes)

			loc.TotalHours += res.TotalHours
			loc.Excluded += res.Excluded
			addAttributes(loc.TotalAttributes, res.TotalAttributes)

			loc.Targets = append(loc.Targets, TargetAggregate{
				TargetID:        targetID,
				TargetType:      events[0].TargetType,
				TotalHours:      res.TotalHours,
				TotalAttributes: res.TotalAttributes,
				Sessions:        res.Sessions,
				Excluded:        res.Excluded,
			})

			a.record(q, le.LocationID, targetID, res)

			if _, ok := seen[targetID]; !ok {
				seen[targetID] = struct{}{}
				ids = append(ids, targetID)
			}
		}

		out = append(out, loc)
	}

	names := a.resolve(ctx, ids)
	for i := range out {
		for j := range out[i].Targets {
			if name, ok := names[out[i].Targets[j].TargetID]; ok {
				n := name
				out[i].Targets[j].DisplayName = &n
			}
		}
	}

	return out, nil
}

func (a *Aggregator) resolve(ctx context.Context, ids []string) map[string]string {
	if a.names == nil || len(ids) == 0 {
		return nil
	}
	names, err := a.names.ResolveNames(ctx, ids)
	if err != nil {
		a.logger.Warn().Err(err).Int("targets", len(ids)).Msg("Failed to resolve target names")
		return nil
	}
	return names
}

func (a *Aggregator) record(q Query, locationID, targetID string, res MatchResult) {
	metrics.SessionsMatched.WithLabelValues(q.Name).Add(float64(len(res.Sessions)))
	if res.Excluded == 0 {
		return
	}
	for _, s := range res.Sessions {
		if s.Excluded {
			metrics.SessionsExcluded.WithLabelValues(q.Name, string(s.Reason)).Inc()
		}
	}
	a.logger.Debug().
		Str("query", q.Name).
		Str("location_id", locationID).
		Str("target_id", targetID).
		Int("excluded", res.Excluded).
		Msg("Sessions excluded from totals")
}

// groupByTarget splits events per target, keeping first-seen target order.
func groupByTarget(events []Event) ([]string, map[string][]Event) {
	var order []string
	byTarget := make(map[string][]Event)
	for _, ev := range events {
		if _, ok := byTarget[ev.TargetID]; !ok {
			order = append(order, ev.TargetID)
		}
		byTarget[ev.TargetID] = append(byTarget[ev.TargetID], ev)
	}
	return order, byTarget
}
