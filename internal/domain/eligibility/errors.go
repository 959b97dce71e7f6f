package eligibility

import "errors"

// Sentinel kinds for eligibility errors.
var (
	ErrNotAssigned           = errors.New("not assigned")
	ErrIndependenceViolation = errors.New("independence violation")
)
