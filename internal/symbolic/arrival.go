package symbolic

import (
	"fmt"
	"math"
)

// Arrival is a sigma/rho decomposition of one bound: Sigma describes the
// burstiness, Rho the rate. The two trees may share Hölder parameters.
type Arrival struct {
	Sigma Function
	Rho   Function
}

// NewArrival pairs sigma and rho.
func NewArrival(sigma, rho Function) (*Arrival, error) {
	if sigma == nil || rho == nil {
		return nil, fmt.Errorf("%w: arrival needs both sigma and rho", ErrBadInitialization)
	}
	return &Arrival{Sigma: sigma, Rho: rho}, nil
}

// Parameters is the union of the ids used by sigma and rho.
func (a *Arrival) Parameters() IDSet {
	return Parameters(a.Sigma).Union(Parameters(a.Rho))
}

// ThetaStar is the largest admissible theta for both trees under params.
func (a *Arrival) ThetaStar(params Assignment) (float64, error) {
	ms, err := MaxTheta(a.Sigma, params)
	if err != nil {
		return 0, fmt.Errorf("sigma: %w", err)
	}
	mr, err := MaxTheta(a.Rho, params)
	if err != nil {
		return 0, fmt.Errorf("rho: %w", err)
	}
	return math.Min(ms, mr), nil
}

// Components evaluates sigma and rho at theta. params must cover exactly
// Parameters(); each tree receives only the ids it uses.
func (a *Arrival) Components(theta float64, params Assignment) (sigma, rho float64, err error) {
	if err := a.checkParameters(params); err != nil {
		return 0, 0, err
	}

	sp, err := params.Subset(Parameters(a.Sigma))
	if err != nil {
		return 0, 0, err
	}
	sigma, err = Evaluate(a.Sigma, theta, sp)
	if err != nil {
		return 0, 0, fmt.Errorf("sigma: %w", err)
	}

	rp, err := params.Subset(Parameters(a.Rho))
	if err != nil {
		return 0, 0, err
	}
	rho, err = Evaluate(a.Rho, theta, rp)
	if err != nil {
		return 0, 0, fmt.Errorf("rho: %w", err)
	}
	return sigma, rho, nil
}

// Evaluate returns the violation probability bound
//
//	exp(θ(σ(θ) + ρ(θ)·delay − backlog)) / (1 − exp(θ·ρ(θ)))
//
// A non-negative rho means the server cannot drain the arrivals and yields
// ErrServerOverload.
func (a *Arrival) Evaluate(theta, delay, backlog float64, params Assignment) (float64, error) {
	sigma, rho, err := a.Components(theta, params)
	if err != nil {
		return 0, err
	}
	if rho >= 0 {
		return 0, fmt.Errorf("%w: rho %g at theta %g is not negative", ErrServerOverload, rho, theta)
	}
	return math.Exp(theta*(sigma+rho*delay-backlog)) / (1 - math.Exp(theta*rho)), nil
}

func (a *Arrival) checkParameters(params Assignment) error {
	required := a.Parameters()
	for _, id := range params.IDs() {
		if !required.Contains(id) {
			return fmt.Errorf("%w: arrival does not use hoelder %d", ErrParameterMismatch, id)
		}
	}
	return nil
}

func (a *Arrival) String() string {
	return fmt.Sprintf("arrival(sigma=%s, rho=%s)", a.Sigma, a.Rho)
}
