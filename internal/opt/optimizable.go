package opt

import (
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

// Optimizable is anything that produces a bound the searches can minimize.
//
// The Optimizable owns its Hölder assignment. Searches only read its ids
// and start from their own neutral copy, so several runs may share one
// Optimizable as long as nobody writes to the owned assignment meanwhile.
type Optimizable interface {
	// Prepare resets every Hölder parameter to p = q = 2. Idempotent, and
	// free of writes when the assignment is already neutral.
	Prepare()

	// HoelderParameters returns the assignment the Optimizable owns.
	HoelderParameters() symbolic.Assignment

	// MaximumTheta is the largest admissible theta at the owned assignment.
	MaximumTheta() (float64, error)

	// Evaluate computes the bound at theta under params. It may fail with
	// symbolic.ErrServerOverload or symbolic.ErrThetaOutOfBound.
	Evaluate(theta float64, params symbolic.Assignment) (float64, error)
}

// Expression minimizes a single function, with theta additionally capped.
type Expression struct {
	mu       sync.Mutex
	fn       symbolic.Function
	thetaCap float64
	params   symbolic.Assignment
}

// NewExpression wraps fn. thetaCap must be positive; +Inf means no cap
// beyond the function's own domain.
func NewExpression(fn symbolic.Function, thetaCap float64) (*Expression, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: expression without function", symbolic.ErrBadInitialization)
	}
	if !(thetaCap > 0) {
		return nil, fmt.Errorf("%w: theta cap %g must be positive", symbolic.ErrBadInitialization, thetaCap)
	}
	return &Expression{
		fn:       fn,
		thetaCap: thetaCap,
		params:   symbolic.NewAssignment(symbolic.Parameters(fn)),
	}, nil
}

func (e *Expression) Prepare() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params.Reset()
}

func (e *Expression) HoelderParameters() symbolic.Assignment { return e.params }

func (e *Expression) MaximumTheta() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, err := symbolic.MaxTheta(e.fn, e.params)
	if err != nil {
		return 0, err
	}
	return math.Min(m, e.thetaCap), nil
}

func (e *Expression) Evaluate(theta float64, params symbolic.Assignment) (float64, error) {
	if theta >= e.thetaCap {
		return 0, fmt.Errorf("%w: theta %g >= cap %g", symbolic.ErrThetaOutOfBound, theta, e.thetaCap)
	}
	return symbolic.Evaluate(e.fn, theta, params)
}

// ArrivalBound is the violation probability of an arrival pair at a fixed
// delay and backlog.
type ArrivalBound struct {
	mu       sync.Mutex
	arrival  *symbolic.Arrival
	delay    float64
	backlog  float64
	thetaCap float64
	params   symbolic.Assignment
}

// NewArrivalBound wraps a for evaluation at the given delay and backlog,
// with theta below the arrival's own maximum only.
func NewArrivalBound(a *symbolic.Arrival, delay, backlog float64) *ArrivalBound {
	return &ArrivalBound{
		arrival:  a,
		delay:    delay,
		backlog:  backlog,
		thetaCap: math.Inf(1),
		params:   symbolic.NewAssignment(a.Parameters()),
	}
}

func (b *ArrivalBound) Prepare() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.Reset()
}

func (b *ArrivalBound) HoelderParameters() symbolic.Assignment { return b.params }

func (b *ArrivalBound) MaximumTheta() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.arrival.ThetaStar(b.params)
	if err != nil {
		return 0, err
	}
	return math.Min(m, b.thetaCap), nil
}

func (b *ArrivalBound) Evaluate(theta float64, params symbolic.Assignment) (float64, error) {
	if theta >= b.thetaCap {
		return 0, fmt.Errorf("%w: theta %g >= cap %g", symbolic.ErrThetaOutOfBound, theta, b.thetaCap)
	}
	return b.arrival.Evaluate(theta, b.delay, b.backlog, params)
}

// neutral returns a fresh p = q = 2 assignment over the ids of o, for a
// search to own.
func neutral(o Optimizable) symbolic.Assignment {
	return symbolic.NewAssignment(symbolic.NewIDSet(o.HoelderParameters().IDs()...))
}
