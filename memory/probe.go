package memory

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleProbe registers a job on c that runs r.Probe on the given cron
// spec (standard five-field or descriptors such as "@every 30s"). Each run
// is bounded by timeout.
func ScheduleProbe(c *cron.Cron, spec string, r *Resilient, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = r.Probe(ctx)
	})
}
