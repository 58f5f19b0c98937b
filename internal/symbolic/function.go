package symbolic

import (
	"fmt"
	"math"
	"strings"
)

// Function is a symbolic function of theta and a set of Hölder parameters.
// The set of variants is closed: Constant, Affine, Scaled, Sum and Max.
// Trees are immutable once built; the only state an evaluation reads is the
// Assignment passed to it.
type Function interface {
	fmt.Stringer
	function()
}

// Constant ignores theta.
type Constant struct {
	Value float64
}

// Affine is Intercept + Slope*theta, defined for theta < Limit.
type Affine struct {
	Slope     float64
	Intercept float64
	Limit     float64
}

// Scaled evaluates Of at theta multiplied by the p (UseP) or q part of the
// Hölder parameter Param.
type Scaled struct {
	Of    Function
	Param HoelderID
	UseP  bool
}

// Sum adds its terms.
type Sum struct {
	Terms []Function
}

// Max takes the largest of its terms.
type Max struct {
	Terms []Function
}

func (Constant) function() {}
func (Affine) function()   {}
func (Scaled) function()   {}
func (Sum) function()      {}
func (Max) function()      {}

// NewConstant returns a constant function. NaN is rejected.
func NewConstant(v float64) (Constant, error) {
	if math.IsNaN(v) {
		return Constant{}, fmt.Errorf("%w: constant is NaN", ErrBadInitialization)
	}
	return Constant{Value: v}, nil
}

// NewAffine returns intercept + slope*theta on (0, limit). A limit of +Inf
// leaves theta unbounded.
func NewAffine(slope, intercept, limit float64) (Affine, error) {
	if math.IsNaN(slope) || math.IsNaN(intercept) || math.IsInf(slope, 0) || math.IsInf(intercept, 0) {
		return Affine{}, fmt.Errorf("%w: affine coefficients must be finite", ErrBadInitialization)
	}
	if !(limit > 0) {
		return Affine{}, fmt.Errorf("%w: affine limit %g must be positive", ErrBadInitialization, limit)
	}
	return Affine{Slope: slope, Intercept: intercept, Limit: limit}, nil
}

// NewScaled rescales theta of fn by the p (useP) or q part of param.
func NewScaled(fn Function, param HoelderID, useP bool) (Scaled, error) {
	if fn == nil {
		return Scaled{}, fmt.Errorf("%w: scaled function without operand", ErrBadInitialization)
	}
	return Scaled{Of: fn, Param: param, UseP: useP}, nil
}

// NewSum adds terms.
func NewSum(terms ...Function) (Sum, error) {
	if err := checkTerms("sum", terms); err != nil {
		return Sum{}, err
	}
	return Sum{Terms: append([]Function(nil), terms...)}, nil
}

// NewMax takes the maximum over terms.
func NewMax(terms ...Function) (Max, error) {
	if err := checkTerms("max", terms); err != nil {
		return Max{}, err
	}
	return Max{Terms: append([]Function(nil), terms...)}, nil
}

func checkTerms(op string, terms []Function) error {
	if len(terms) == 0 {
		return fmt.Errorf("%w: %s without terms", ErrBadInitialization, op)
	}
	for i, t := range terms {
		if t == nil {
			return fmt.Errorf("%w: %s term %d is nil", ErrBadInitialization, op, i)
		}
	}
	return nil
}

// DependentSum adds a and b when their processes are stochastically
// dependent: a is scaled by the p part and b by the q part of id.
func DependentSum(a, b Function, id HoelderID) (Sum, error) {
	sa, sb, err := hoelderSplit(a, b, id)
	if err != nil {
		return Sum{}, err
	}
	return NewSum(sa, sb)
}

// DependentMax is the dependent counterpart of Max for two operands.
func DependentMax(a, b Function, id HoelderID) (Max, error) {
	sa, sb, err := hoelderSplit(a, b, id)
	if err != nil {
		return Max{}, err
	}
	return NewMax(sa, sb)
}

func hoelderSplit(a, b Function, id HoelderID) (Scaled, Scaled, error) {
	if a == nil || b == nil {
		return Scaled{}, Scaled{}, fmt.Errorf("%w: dependent operand is nil", ErrBadInitialization)
	}
	if Parameters(a).Contains(id) || Parameters(b).Contains(id) {
		return Scaled{}, Scaled{}, fmt.Errorf("%w: hoelder %d already used by an operand", ErrBadInitialization, id)
	}
	sa, err := NewScaled(a, id, true)
	if err != nil {
		return Scaled{}, Scaled{}, err
	}
	sb, err := NewScaled(b, id, false)
	if err != nil {
		return Scaled{}, Scaled{}, err
	}
	return sa, sb, nil
}

// Evaluate computes fn at theta. params must hold exactly the ids returned
// by Parameters(fn).
func Evaluate(fn Function, theta float64, params Assignment) (float64, error) {
	if err := checkParameters(fn, params); err != nil {
		return 0, err
	}
	return eval(fn, theta, params)
}

func checkParameters(fn Function, params Assignment) error {
	required := Parameters(fn)
	for _, id := range required.Sorted() {
		if _, ok := params[id]; !ok {
			return fmt.Errorf("%w: %s needs hoelder %d", ErrParameterMismatch, fn, id)
		}
	}
	for _, id := range params.IDs() {
		if !required.Contains(id) {
			return fmt.Errorf("%w: %s does not use hoelder %d", ErrParameterMismatch, fn, id)
		}
	}
	return nil
}

func eval(fn Function, theta float64, params Assignment) (float64, error) {
	if !(theta > 0) {
		return 0, fmt.Errorf("%w: theta %g at %s", ErrThetaOutOfBound, theta, fn)
	}

	switch f := fn.(type) {
	case Constant:
		if math.IsInf(theta, 1) {
			return 0, fmt.Errorf("%w: theta %g at %s", ErrThetaOutOfBound, theta, fn)
		}
		return f.Value, nil
	case Affine:
		if theta >= f.Limit {
			return 0, fmt.Errorf("%w: theta %g >= %g at %s", ErrThetaOutOfBound, theta, f.Limit, fn)
		}
		return f.Intercept + f.Slope*theta, nil
	case Scaled:
		h, ok := params[f.Param]
		if !ok {
			return 0, fmt.Errorf("%w: %s needs hoelder %d", ErrParameterMismatch, fn, f.Param)
		}
		return eval(f.Of, theta*h.Value(f.UseP), params)
	case Sum:
		var total float64
		for _, t := range f.Terms {
			v, err := eval(t, theta, params)
			if err != nil {
				return 0, err
			}
			total += v
		}
		return total, nil
	case Max:
		best := math.Inf(-1)
		for _, t := range f.Terms {
			v, err := eval(t, theta, params)
			if err != nil {
				return 0, err
			}
			best = math.Max(best, v)
		}
		return best, nil
	default:
		panic(fmt.Sprintf("symbolic: unknown function %T", fn))
	}
}

// MaxTheta returns the supremum of admissible theta for fn under params.
// For a Scaled node this is the operand's bound divided by the Hölder part.
func MaxTheta(fn Function, params Assignment) (float64, error) {
	switch f := fn.(type) {
	case Constant:
		return math.Inf(1), nil
	case Affine:
		return f.Limit, nil
	case Scaled:
		h, ok := params[f.Param]
		if !ok {
			return 0, fmt.Errorf("%w: %s needs hoelder %d", ErrParameterMismatch, fn, f.Param)
		}
		m, err := MaxTheta(f.Of, params)
		if err != nil {
			return 0, err
		}
		return m / h.Value(f.UseP), nil
	case Sum:
		return minMaxTheta(f.Terms, params)
	case Max:
		return minMaxTheta(f.Terms, params)
	default:
		panic(fmt.Sprintf("symbolic: unknown function %T", fn))
	}
}

func minMaxTheta(terms []Function, params Assignment) (float64, error) {
	bound := math.Inf(1)
	for _, t := range terms {
		m, err := MaxTheta(t, params)
		if err != nil {
			return 0, err
		}
		bound = math.Min(bound, m)
	}
	return bound, nil
}

// Parameters returns the Hölder ids fn depends on.
func Parameters(fn Function) IDSet {
	switch f := fn.(type) {
	case Constant, Affine:
		return IDSet{}
	case Scaled:
		return Parameters(f.Of).Union(NewIDSet(f.Param))
	case Sum:
		return termParameters(f.Terms)
	case Max:
		return termParameters(f.Terms)
	default:
		panic(fmt.Sprintf("symbolic: unknown function %T", fn))
	}
}

func termParameters(terms []Function) IDSet {
	s := IDSet{}
	for _, t := range terms {
		s = s.Union(Parameters(t))
	}
	return s
}

func (f Constant) String() string {
	return fmt.Sprintf("c(%g)", f.Value)
}

func (f Affine) String() string {
	return fmt.Sprintf("affine(%g*t%+g,<%g)", f.Slope, f.Intercept, f.Limit)
}

func (f Scaled) String() string {
	if f.UseP {
		return fmt.Sprintf("scaled(%s,%d)", f.Of, f.Param)
	}
	return fmt.Sprintf("scaled(%s,%d,q)", f.Of, f.Param)
}

func (f Sum) String() string {
	return joinTerms("sum", f.Terms)
}

func (f Max) String() string {
	return joinTerms("max", f.Terms)
}

func joinTerms(op string, terms []Function) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return op + "(" + strings.Join(parts, ",") + ")"
}
