package pipeline

import (
	"errors"
	"fmt"
)

// PreconditionError means a stage's required input has not been populated by
// its upstream stage yet. The task system retries it with backoff until the
// prerequisite lands; this is the intended wait mechanism, not a failure.
type PreconditionError struct {
	DepositPK int64
	Missing   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("deposit %d missing %s", e.DepositPK, e.Missing)
}

// Precondition builds a PreconditionError.
func Precondition(depositPK int64, missing string) error {
	return &PreconditionError{DepositPK: depositPK, Missing: missing}
}

// IsPrecondition reports whether err is a missing-prerequisite error.
func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}
