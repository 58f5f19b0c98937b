package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

// infeasibleCost stands in for +Inf inside population searches, whose
// update rules do arithmetic on costs.
const infeasibleCost = 1e100

// unitMargin keeps decoded coordinates away from theta = 0 and p = 1.
const unitMargin = 1e-6

// GlobalMinimize searches the same space as Gradient with a population
// optimizer. Coordinates live in the unit cube: the first maps to theta in
// (0, maxTheta), the others to p in (1, maxP) with q = p/(p-1), so every
// sampled pair is conjugate. The theta domain of o must be finite.
func GlobalMinimize(ctx context.Context, o Optimizable, optimizer Optimizer, maxP float64) (*Result, error) {
	if !(maxP > 1) || math.IsInf(maxP, 1) {
		return nil, fmt.Errorf("%w: max p %g must be finite and above 1", ErrInvalidInput, maxP)
	}

	o.Prepare()
	maxTheta, err := o.MaximumTheta()
	if err != nil {
		return nil, fmt.Errorf("maximum theta: %w", err)
	}
	if math.IsInf(maxTheta, 1) || !(maxTheta > 0) {
		return nil, fmt.Errorf("%w: global search needs a finite theta bound, got %g", ErrInvalidInput, maxTheta)
	}

	base := neutral(o)
	ids := base.IDs()
	dim := 1 + len(ids)

	decode := func(x []float64) Position {
		params := base.Clone()
		for i, id := range ids {
			p := 1 + clampUnit(x[i+1])*(maxP-1)
			params[id] = symbolic.Hoelder{ID: id, P: p, Q: p / (p - 1)}
		}
		return Position{Theta: clampUnit(x[0]) * maxTheta, Params: params}
	}

	var (
		mu      sync.Mutex
		evalErr error
		evals   int
	)
	eval := func(x []float64) float64 {
		mu.Lock()
		evals++
		failed := evalErr != nil
		mu.Unlock()
		if failed || ctx.Err() != nil {
			return infeasibleCost
		}

		pos := decode(x)
		v, err := o.Evaluate(pos.Theta, pos.Params)
		if err != nil {
			if !symbolic.IsInfeasible(err) {
				mu.Lock()
				if evalErr == nil {
					evalErr = err
				}
				mu.Unlock()
			}
			return infeasibleCost
		}
		if math.IsNaN(v) || v > infeasibleCost {
			return infeasibleCost
		}
		return v
	}

	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range upper {
		upper[i] = 1
	}

	x, cost, err := optimizer.Run(eval, lower, upper, dim)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if evalErr != nil {
		return nil, evalErr
	}
	if cost >= infeasibleCost {
		cost = math.Inf(1)
	}

	pos := decode(x)
	slog.Info("Global search complete", "cost", cost, "theta", pos.Theta, "evaluations", evals)

	return &Result{Cost: cost, Position: pos, Evaluations: evals}, nil
}

func clampUnit(v float64) float64 {
	return math.Max(unitMargin, math.Min(1-unitMargin, v))
}
