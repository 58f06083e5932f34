package usecase

import (
	"context"

	"swapit/pkg/logger"
)

// rollbackLog records completed side effects of a multi-step operation so
// they can be compensated in reverse order when a later step fails. A
// compensation failing is logged and never masks the original failure.
type rollbackLog struct {
	steps []struct {
		desc string
		fn   func(context.Context) error
	}
}

func (r *rollbackLog) add(desc string, fn func(context.Context) error) {
	r.steps = append(r.steps, struct {
		desc string
		fn   func(context.Context) error
	}{desc, fn})
}

func (r *rollbackLog) run(ctx context.Context) {
	for i := len(r.steps) - 1; i >= 0; i-- {
		if err := r.steps[i].fn(ctx); err != nil {
			logger.Warn("Rollback step failed (%s): %v", r.steps[i].desc, err)
		}
	}
}
