package symbolic

import "errors"

// Error kinds raised by function evaluation and construction.
// Callers test for them with errors.Is; the returned errors wrap these
// sentinels with the offending node or parameter id.
var (
	// ErrParameterMismatch means the supplied assignment does not carry
	// exactly the Hölder ids a function requires.
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrThetaOutOfBound means theta left (0, maxTheta) at some node,
	// possibly after rescaling.
	ErrThetaOutOfBound = errors.New("theta out of bound")

	// ErrServerOverload means the modelled system is infeasible at the
	// current parameters.
	ErrServerOverload = errors.New("server overload")

	// ErrBadInitialization means a function or arrival was built with
	// inconsistent structure.
	ErrBadInitialization = errors.New("bad initialization")
)

// IsInfeasible reports whether err is one of the numeric domain errors
// that a search treats as an infinite cost rather than a failure.
func IsInfeasible(err error) bool {
	return errors.Is(err, ErrServerOverload) || errors.Is(err, ErrThetaOutOfBound)
}
