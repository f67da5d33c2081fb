// Package schedule runs periodic jobs on a cron spec.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calgrid/internal/log"
)

// Job is one scheduled unit of work. ctx is canceled when the schedule stops.
type Job func(ctx context.Context) error

// Scheduler wraps a running cron instance.
type Scheduler struct {
	cron  *cron.Cron
	entry cron.EntryID
}

// cronLogger forwards cron's own messages to appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Start runs job on spec (standard 5-field cron syntax or a descriptor such
// as "@hourly") in loc until ctx is canceled. A run that is still in
// progress when the next one is due causes that next run to be skipped.
func Start(ctx context.Context, name, spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(spec, func() {
		started := time.Now()
		if err := job(ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "took", time.Since(started))
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", name, err)
	}

	c.Start()
	s := &Scheduler{cron: c, entry: id}
	appLog.Info("schedule started", "job", name, "spec", spec, "next", s.Next().Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s, nil
}

// Next returns the time of the next run.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop stops the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
