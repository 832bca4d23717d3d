package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/fleethours/internal/activity"
	"github.com/goodtune/fleethours/internal/report"
	"github.com/goodtune/fleethours/internal/storage"
	"github.com/rs/zerolog"
)

// Generator produces a report for one kind and window.
type Generator interface {
	Generate(ctx context.Context, kind report.Kind, w activity.Window, locations []string) (*report.Report, error)
}

// Config holds scheduler configuration
type Config struct {
	RunTime   string // HH:MM in Location
	Location  *time.Location
	Kinds     []report.Kind
	Locations []string
	ReportTTL time.Duration
}

// Scheduler generates the previous day's reports once a day and stores them.
type Scheduler struct {
	generator Generator
	reports   storage.ReportStore
	runTime   time.Time // only hour and minute are used
	config    Config
	clock     report.Clock
	logger    zerolog.Logger
	stopChan  chan struct{}
	done      chan struct{}

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a new report scheduler
func New(generator Generator, reports storage.ReportStore, config Config, clock report.Clock, logger zerolog.Logger) (*Scheduler, error) {
	// Parse run time (HH:MM format)
	parsedTime, err := time.Parse("15:04", config.RunTime)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", config.RunTime, err)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if clock == nil {
		clock = report.SystemClock()
	}

	return &Scheduler{
		generator: generator,
		reports:   reports,
		runTime:   parsedTime,
		config:    config,
		clock:     clock,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop. Calling it more than once, or after Stop,
// does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.stopChan:
		return
	default:
	}
	if s.started {
		return
	}
	s.started = true

	go s.run()
	s.logger.Info().
		Str("run_time", s.runTime.Format("15:04")).
		Str("timezone", s.config.Location.String()).
		Msg("Daily report scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish. It is safe
// to call without Start and more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopChan)
		started := s.started
		s.mu.Unlock()

		if started {
			<-s.done
		}
		s.logger.Info().Msg("Daily report scheduler stopped")
	})
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer close(s.done)

	for {
		nextRun := s.calculateNextRun()
		waitDuration := nextRun.Sub(s.clock.Now())

		s.logger.Info().
			Time("next_run", nextRun).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next report run")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			ctx, cancel := s.jobContext()
			if err := s.RunFor(ctx, nextRun); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled report run failed")
			}
			cancel()
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// jobContext is cancelled when the scheduler stops
func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// calculateNextRun returns the next run time strictly after now
func (s *Scheduler) calculateNextRun() time.Time {
	now := s.clock.Now().In(s.config.Location)

	todayRun := time.Date(
		now.Year(), now.Month(), now.Day(),
		s.runTime.Hour(), s.runTime.Minute(), 0, 0,
		s.config.Location,
	)

	// If we've already passed today's run time, schedule for tomorrow
	if !now.Before(todayRun) {
		return todayRun.AddDate(0, 0, 1)
	}

	return todayRun
}

// RunFor generates and stores every configured kind for the local day
// before the one containing t.
func (s *Scheduler) RunFor(ctx context.Context, t time.Time) error {
	local := t.In(s.config.Location)
	w := activity.DayWindow(local.AddDate(0, 0, -1), s.config.Location)

	s.logger.Info().
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Int("locations", len(s.config.Locations)).
		Msg("Generating daily reports")

	var errs []error
	for _, kind := range s.config.Kinds {
		if err := s.runKind(ctx, kind, w); err != nil {
			errs = append(errs, fmt.Errorf("%s report: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runKind(ctx context.Context, kind report.Kind, w activity.Window) error {
	rep, err := s.generator.Generate(ctx, kind, w, s.config.Locations)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	snapshot := storage.ReportSnapshot{
		ID:          storage.SnapshotID(string(kind), w.Start, w.End),
		Kind:        string(kind),
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Timezone:    s.config.Location.String(),
		GeneratedAt: rep.GeneratedAt,
		Payload:     payload,
	}
	if err := s.reports.SaveReport(ctx, snapshot, s.config.ReportTTL); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Info().
		Str("kind", string(kind)).
		Str("snapshot_id", snapshot.ID).
		Int("bytes", len(payload)).
		Msg("Report snapshot saved")
	return nil
}
