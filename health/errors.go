package health

import "errors"

var (
	// ErrCheckFailed marks a result whose component reported a problem
	// without an error of its own.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is reported for checks that outlive the aggregate deadline.
	ErrCheckTimeout = errors.New("health: check timeout")

	ErrCheckerNotFound = errors.New("health: checker not found")
)
