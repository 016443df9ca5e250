package feed

import (
	"context"
	"fmt"

	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Auditor consumes the change feed and turns it into audit logs and metrics.
type Auditor struct {
	feed Feed
	log  logger.Logger

	shutdown chan struct{}
	done     chan struct{}
}

// NewAuditor creates an auditor over the given feed.
func NewAuditor(feed Feed, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		feed:     feed,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.Get().Named("audit")
	}
	return a
}

// Run consumes changes until ctx is canceled, Shutdown is called, or the
// feed closes.
func (a *Auditor) Run(ctx context.Context) {
	defer close(a.done)

	changes := a.feed.Subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.shutdown:
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			a.record(ctx, c)
			metrics.UpdateFeedDepth(a.feed.Len(ctx))
		}
	}
}

// Shutdown stops the auditor, waiting for the loop to exit.
func (a *Auditor) Shutdown(ctx context.Context) error {
	close(a.shutdown)
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("auditor shutdown timed out: %w", ctx.Err())
	}
}

func (a *Auditor) record(ctx context.Context, c Change) {
	fields := []logger.Field{
		logger.String("unit", c.UnitID),
		logger.String("stage", string(c.Stage)),
		logger.Int("round", c.Round),
		logger.String("judge", c.JudgeID),
		logger.Int("reported", c.JudgesReported),
		logger.Int("required", c.JudgesRequired),
		logger.Time("at", c.At),
	}
	switch {
	case c.Refinalized:
		metrics.RecordUnitRefinalized()
		metrics.RecordUnitFinalized()
		a.log.Info(ctx, "unit re-finalized after resubmission", fields...)
	case c.Finalized:
		metrics.RecordUnitFinalized()
		a.log.Info(ctx, "unit finalized", fields...)
	default:
		a.log.Info(ctx, "unit awaiting judges", fields...)
	}
}
