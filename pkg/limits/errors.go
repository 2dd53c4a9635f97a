package limits

import (
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound             = errors.New("limits.errors.plan_not_found")
	ErrInvalidPlanConfiguration = errors.New("limits.errors.invalid_plan_configuration")
	ErrFailedToLoadPlans        = errors.New("limits.errors.failed_to_load_plans")

	ErrLimitExceeded              = errors.New("limits.errors.limit_exceeded")
	ErrInvalidResource            = errors.New("limits.errors.invalid_resource")
	ErrInvalidAmount              = errors.New("limits.errors.invalid_amount")
	ErrNoCounterRegistered        = errors.New("limits.errors.no_counter_registered")
	ErrFailedToCountResourceUsage = errors.New("limits.errors.failed_to_count_resource_usage")
	ErrDowngradeNotPossible       = errors.New("limits.errors.downgrade_not_possible")
)

// ExceededError reports a refused request with the figures behind it.
// It matches ErrLimitExceeded with errors.Is.
type ExceededError struct {
	Resource Resource
	Usage    Usage
}

// Error describes the exceeded resource.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %s (current=%d limit=%d requested=%d available=%d)",
		ErrLimitExceeded, e.Resource, e.Usage.Current, e.Usage.Limit, e.Usage.Requested, e.Usage.Available)
}

// Is matches ErrLimitExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}
