package calibration

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports a sample below the minimum an operation
// needs. It is non-fatal: callers convert it into an insufficient-data
// result rather than failing the run.
type InsufficientDataError struct {
	Got  int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d samples, need %d", e.Got, e.Need)
}

// IsInsufficientData reports whether err is an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}
