package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

// BoundType selects the performance metric of a bound.
type BoundType int

const (
	Backlog BoundType = iota
	Delay
	Output
)

func (b BoundType) String() string {
	switch b {
	case Backlog:
		return "backlog"
	case Delay:
		return "delay"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("BoundType(%d)", int(b))
	}
}

// ParseBoundType accepts backlog, delay and output in any case.
func ParseBoundType(s string) (BoundType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backlog":
		return Backlog, nil
	case "delay":
		return Delay, nil
	case "output":
		return Output, nil
	default:
		return 0, fmt.Errorf("%w: unknown bound type %q", ErrInvalidInput, s)
	}
}

// Bound minimizes the violation probability of arrival for a given backlog
// or delay value. Delays are rounded up to whole time slots. An output
// bound has no optimization target and yields NaN without evaluating.
// Theta stays below g.ThetaMax when it is set.
func (g *Gradient) Bound(ctx context.Context, arrival *symbolic.Arrival, boundType BoundType, value, thetaGranularity, hoelderGranularity float64) (*Result, error) {
	if arrival == nil && boundType != Output {
		return nil, fmt.Errorf("%w: %s bound without arrival", ErrInvalidInput, boundType)
	}

	var o *ArrivalBound
	switch boundType {
	case Backlog:
		o = NewArrivalBound(arrival, 0, value)
	case Delay:
		o = NewArrivalBound(arrival, math.Ceil(value), 0)
	case Output:
		return &Result{Cost: math.NaN()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown bound type %d", ErrInvalidInput, int(boundType))
	}
	o.thetaCap = g.thetaCap()

	res, err := g.Minimize(ctx, o, thetaGranularity, hoelderGranularity)
	if err != nil {
		return nil, fmt.Errorf("%s bound: %w", boundType, err)
	}
	slog.Info("Bound computed",
		"type", boundType.String(),
		"value", value,
		"probability", res.Cost,
		"theta", res.Position.Theta,
		"iterations", res.Iterations,
	)
	return res, nil
}

// ReverseBound minimizes the backlog or delay that is violated with at
// most the given probability. Like Bound it honours g.ThetaMax.
func (g *Gradient) ReverseBound(ctx context.Context, arrival *symbolic.Arrival, boundType BoundType, violationProbability, thetaGranularity, hoelderGranularity float64) (*Result, error) {
	if boundType == Output {
		return &Result{Cost: math.NaN()}, nil
	}
	if arrival == nil {
		return nil, fmt.Errorf("%w: %s bound without arrival", ErrInvalidInput, boundType)
	}
	if !(violationProbability > 0 && violationProbability < 1) {
		return nil, fmt.Errorf("%w: violation probability %g must lie in (0, 1)", ErrInvalidInput, violationProbability)
	}
	if err := checkGranularity(thetaGranularity, hoelderGranularity); err != nil {
		return nil, err
	}

	logEps := math.Log(violationProbability)
	var cost objective
	switch boundType {
	case Backlog:
		cost = func(theta float64, params symbolic.Assignment) (float64, error) {
			p, err := arrival.Evaluate(theta, 0, 0, params)
			if err != nil {
				return 0, err
			}
			if !(p > 0) || math.IsInf(p, 1) {
				return 0, fmt.Errorf("%w: probability %g at theta %g", symbolic.ErrServerOverload, p, theta)
			}
			return -logEps/theta + math.Log(p)/theta, nil
		}
	case Delay:
		cost = func(theta float64, params symbolic.Assignment) (float64, error) {
			sigma, rho, err := arrival.Components(theta, params)
			if err != nil {
				return 0, err
			}
			if rho >= 0 {
				return 0, fmt.Errorf("%w: rho %g at theta %g is not negative", symbolic.ErrServerOverload, rho, theta)
			}
			return -1 / rho * (-logEps/theta + sigma), nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown bound type %d", ErrInvalidInput, int(boundType))
	}

	params := symbolic.NewAssignment(arrival.Parameters())
	maxTheta, err := arrival.ThetaStar(params)
	if err != nil {
		return nil, fmt.Errorf("maximum theta: %w", err)
	}
	maxTheta = math.Min(maxTheta, g.thetaCap())

	res, err := g.search(ctx, cost, params, maxTheta, thetaGranularity, hoelderGranularity)
	if err != nil {
		return nil, fmt.Errorf("reverse %s bound: %w", boundType, err)
	}
	slog.Info("Reverse bound computed",
		"type", boundType.String(),
		"violation_probability", violationProbability,
		"bound", res.Cost,
		"theta", res.Position.Theta,
		"iterations", res.Iterations,
	)
	return res, nil
}
