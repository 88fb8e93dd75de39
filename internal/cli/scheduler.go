package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startMaintenance schedules periodic flushes and purges for a long-running
// tracker. A zero interval disables that job. Jobs never overlap themselves,
// and Shutdown waits for running jobs to finish.
func startMaintenance(a *app, flushInterval, purgeInterval time.Duration) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Jobs run detached from the serve context so a shutdown signal does not
	// abort deliveries already on the wire.
	ctx := context.Background()

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"flush", flushInterval, func() { a.tracker.Flush(ctx) }},
		{"purge", purgeInterval, func() { a.tracker.Purge(ctx) }},
	}

	for _, j := range jobs {
		if j.interval <= 0 {
			continue
		}
		_, err := s.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = s.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	s.Start()
	return s, nil
}
