package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidParameter indicates a timestep <= 0, a negative plant decay
	// or another value the models cannot accept.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrSinkWrite indicates the output sink rejected a sample.
	ErrSinkWrite = errors.New("dynamo: sink write failed")
)

// InvalidParameter returns an error wrapping ErrInvalidParameter that names
// the offending parameter and value.
func InvalidParameter(name string, value float64, want string) error {
	return fmt.Errorf("%w: %s must be %s, got %g", ErrInvalidParameter, name, want, value)
}

// SimError wraps an error raised while a run was in progress.
type SimError struct {
	Time    float64
	Step    int
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}
