package worker

import (
	"context"
	"time"

	"github.com/jzx17/procsim/pkg/types"
)

// WorkFunc performs the simulated work for one task
type WorkFunc func(ctx context.Context, task types.Task) error

// SleepWork returns the default work: block for the task duration in units
// of unit on the given clock, or until ctx is done
func SleepWork(clock types.Clock, unit time.Duration) WorkFunc {
	if clock == nil {
		clock = types.NewRealClock()
	}
	return func(ctx context.Context, task types.Task) error {
		return types.SleepContext(ctx, clock, task.Wall(unit))
	}
}
