package override

import "errors"

// Sentinel kinds for override errors.
var (
	ErrMisconfiguredOverride = errors.New("misconfigured guest override")
)
