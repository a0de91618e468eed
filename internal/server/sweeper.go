package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
)

// overdueSweeper is the slice of the ledger the background job needs.
type overdueSweeper interface {
	SweepOverdue(ctx context.Context, scope models.Scope) (dto.SweepResult, error)
}

// overdueSweep marks late borrows OVERDUE on a cron schedule.
type overdueSweep struct {
	ledger overdueSweeper
	cron   *cron.Cron
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// newOverdueSweep builds the job; an empty schedule yields a disabled sweep.
func newOverdueSweep(ledger overdueSweeper, schedule string, lgr zerolog.Logger) (*overdueSweep, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &overdueSweep{ledger: ledger, logger: lgr, ctx: ctx, cancel: cancel}

	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		return s, nil
	}

	cronLog := cronLogger{logger: lgr}
	s.cron = cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog)))
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid overdue sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// cronLogger routes the scheduler's own notices through zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func (s *overdueSweep) Start() {
	if s.cron == nil {
		s.logger.Info().Msg("Background overdue sweep disabled")
		return
	}
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Background overdue sweep scheduled")
}

// Stop cancels a running sweep and waits for it until ctx expires.
func (s *overdueSweep) Stop(ctx context.Context) error {
	s.cancel()
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *overdueSweep) run() {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	// Runs across every school.
	res, err := s.ledger.SweepOverdue(ctx, models.Scope{IsSuperuser: true})
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("Background overdue sweep failed")
		}
		return
	}
	s.logger.Debug().Int64("updated", res.Updated).Msg("Background overdue sweep ran")
}
