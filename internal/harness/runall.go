package harness

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome pairs a scenario with its result.
type Outcome struct {
	Scenario *Scenario
	Result   *Result
}

// RunAll executes scenarios with at most parallel running at once (parallel
// <= 0 runs them one at a time). Outcomes keep the input order. The first
// harness failure cancels the remaining scenarios and is returned.
func RunAll(ctx context.Context, scenarios []*Scenario, parallel int) ([]Outcome, error) {
	if parallel <= 0 {
		parallel = 1
	}

	outcomes := make([]Outcome, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, sc := range scenarios {
		g.Go(func() error {
			result, err := Run(ctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			outcomes[i] = Outcome{Scenario: sc, Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
