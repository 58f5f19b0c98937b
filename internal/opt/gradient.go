package opt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

// ErrInvalidInput is returned for granularities, probabilities or bounds
// outside their domain.
var ErrInvalidInput = errors.New("invalid input")

// DefaultMaxIterations caps a gradient run when no cap is configured.
const DefaultMaxIterations = 1_000_000

// Change names the move a search step committed.
type Change int

const (
	ChangeNone Change = iota
	ChangeThetaDec
	ChangeThetaInc
	ChangeHoelderP
	ChangeHoelderQ
)

func (c Change) String() string {
	switch c {
	case ChangeThetaDec:
		return "theta-dec"
	case ChangeThetaInc:
		return "theta-inc"
	case ChangeHoelderP:
		return "hoelder-p"
	case ChangeHoelderQ:
		return "hoelder-q"
	default:
		return "none"
	}
}

// Position is a point of the search space.
type Position struct {
	Theta  float64
	Params symbolic.Assignment
}

// Step describes one committed move.
type Step struct {
	Iteration int
	Cost      float64
	Change    Change
	// Hoelder is the parameter that moved, for the two Hölder changes.
	Hoelder  symbolic.HoelderID
	Position Position
}

// Result is the outcome of a search.
type Result struct {
	Cost        float64
	Position    Position
	Iterations  int
	Evaluations int
	// Capped is set when the run stopped at the iteration cap instead of
	// at a local minimum.
	Capped bool
}

// Gradient is a discrete hill-climb over theta and the Hölder parameters.
//
// Each iteration evaluates a fixed neighbourhood of the current position:
// theta one step down, theta one step up, then for every Hölder parameter
// a P-direction and a Q-direction step. The strictly best neighbour is
// committed; the run stops when none improves on the current cost.
//
// A Hölder step does not keep 1/p + 1/q = 1. While p < 2 the P-direction
// lowers p and the Q-direction raises it; otherwise they raise and lower q.
type Gradient struct {
	// Workers > 1 evaluates a neighbourhood concurrently. The selection is
	// the same as with one worker.
	Workers int

	// MaxIterations bounds the number of committed steps. Zero means
	// DefaultMaxIterations.
	MaxIterations int

	// ThetaMax caps theta for Bound and ReverseBound on top of the
	// arrival's own domain. Zero means no cap.
	ThetaMax float64

	// Observer, if set, is called after every committed step.
	Observer func(Step)
}

// NewGradient returns a gradient search with the given worker count and
// iteration cap.
func NewGradient(workers, maxIterations int) *Gradient {
	return &Gradient{Workers: workers, MaxIterations: maxIterations}
}

func (g *Gradient) thetaCap() float64 {
	if g.ThetaMax > 0 {
		return g.ThetaMax
	}
	return math.Inf(1)
}

// objective is the cost evaluated at every point of a search.
type objective func(theta float64, params symbolic.Assignment) (float64, error)

type candidate struct {
	step    int
	params  symbolic.Assignment
	change  Change
	hoelder symbolic.HoelderID
}

// Minimize prepares o and searches for its smallest bound from a neutral
// copy of its parameters. o's own assignment is only read.
func (g *Gradient) Minimize(ctx context.Context, o Optimizable, thetaGranularity, hoelderGranularity float64) (*Result, error) {
	if err := checkGranularity(thetaGranularity, hoelderGranularity); err != nil {
		return nil, err
	}

	o.Prepare()
	maxTheta, err := o.MaximumTheta()
	if err != nil {
		return nil, fmt.Errorf("maximum theta: %w", err)
	}

	return g.search(ctx, o.Evaluate, neutral(o), maxTheta, thetaGranularity, hoelderGranularity)
}

func (g *Gradient) search(ctx context.Context, cost objective, params symbolic.Assignment, maxTheta, tg, hg float64) (*Result, error) {
	step := 1
	best, err := cost(tg, params)
	if errors.Is(err, symbolic.ErrServerOverload) {
		best = math.Inf(1)
	} else if err != nil {
		return nil, err
	}
	best = sanitize(best)

	maxIter := g.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	slog.Debug("Starting gradient search",
		"max_theta", maxTheta,
		"theta_granularity", tg,
		"hoelder_granularity", hg,
		"parameters", len(params),
		"initial_cost", best,
	)

	ids := params.IDs()
	res := &Result{Evaluations: 1}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.Iterations >= maxIter {
			slog.Warn("Gradient search hit iteration cap", "iterations", res.Iterations, "cost", best)
			res.Capped = true
			break
		}

		cands := neighbours(step, params, ids, maxTheta, tg, hg)
		costs, err := g.evaluate(ctx, cost, cands, tg)
		if err != nil {
			return nil, err
		}
		res.Evaluations += len(cands)

		winner := -1
		for i, c := range costs {
			if c < best {
				best = c
				winner = i
			}
		}
		if winner < 0 {
			break
		}

		w := cands[winner]
		step, params = w.step, w.params
		res.Iterations++

		slog.Debug("Committed step",
			"iteration", res.Iterations,
			"change", w.change.String(),
			"theta", float64(step)*tg,
			"cost", best,
		)
		if g.Observer != nil {
			g.Observer(Step{
				Iteration: res.Iterations,
				Cost:      best,
				Change:    w.change,
				Hoelder:   w.hoelder,
				Position:  Position{Theta: float64(step) * tg, Params: params.Clone()},
			})
		}
	}

	res.Cost = best
	res.Position = Position{Theta: float64(step) * tg, Params: params}
	return res, nil
}

// neighbours lists the admissible moves from (step, params) in search
// order. Hölder moves get their own copy of params; theta moves share it,
// so params must not be mutated afterwards.
func neighbours(step int, params symbolic.Assignment, ids []symbolic.HoelderID, maxTheta, tg, hg float64) []candidate {
	theta := float64(step) * tg
	cands := make([]candidate, 0, 2+2*len(ids))

	if theta > tg {
		cands = append(cands, candidate{step: step - 1, params: params, change: ChangeThetaDec})
	}
	if theta < maxTheta-tg {
		cands = append(cands, candidate{step: step + 1, params: params, change: ChangeThetaInc})
	}

	for _, dir := range []Change{ChangeHoelderP, ChangeHoelderQ} {
		for _, id := range ids {
			h := stepHoelder(params[id], dir, hg)
			if h.P <= 1 || h.Q <= 1 {
				continue
			}
			moved := params.Clone()
			moved[id] = h
			cands = append(cands, candidate{step: step, params: moved, change: dir, hoelder: id})
		}
	}
	return cands
}

func stepHoelder(h symbolic.Hoelder, dir Change, hg float64) symbolic.Hoelder {
	if dir == ChangeHoelderQ {
		hg = -hg
	}
	if h.P < 2 {
		h.P -= hg
	} else {
		h.Q += hg
	}
	return h
}

func (g *Gradient) evaluate(ctx context.Context, cost objective, cands []candidate, tg float64) ([]float64, error) {
	costs := make([]float64, len(cands))

	if g.Workers <= 1 {
		for i, c := range cands {
			v, err := score(cost, float64(c.step)*tg, c.params)
			if err != nil {
				return nil, err
			}
			costs[i] = v
		}
		return costs, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.Workers)
	for i, c := range cands {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			v, err := score(cost, float64(c.step)*tg, c.params)
			costs[i] = v
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return costs, nil
}

// score evaluates one point; infeasible points cost +Inf and structural
// errors are returned.
func score(cost objective, theta float64, params symbolic.Assignment) (float64, error) {
	v, err := cost(theta, params)
	if err != nil {
		if symbolic.IsInfeasible(err) {
			return math.Inf(1), nil
		}
		return 0, err
	}
	return sanitize(v), nil
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

func checkGranularity(tg, hg float64) error {
	if !(tg > 0) || math.IsInf(tg, 1) {
		return fmt.Errorf("%w: theta granularity %g must be positive", ErrInvalidInput, tg)
	}
	if !(hg > 0) || math.IsInf(hg, 1) {
		return fmt.Errorf("%w: hoelder granularity %g must be positive", ErrInvalidInput, hg)
	}
	return nil
}
