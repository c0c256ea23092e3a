package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a scheduler is configured with a
	// non-positive interval
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned by RunOnce while another sweep runs
	ErrSweepInProgress = errors.New("expiry sweep already in progress")
)
