package orchestration

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

// goWorker runs a panic-safe named worker on g.
func goWorker(ctx context.Context, g *errgroup.Group, name string, run func(context.Context) error) {
	worker := panicSafeNamedWorker(name, run)
	g.Go(func() error { return worker(ctx) })
}
