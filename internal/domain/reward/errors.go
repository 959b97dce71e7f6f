package reward

import "errors"

// Sentinel kinds for reward errors.
var (
	ErrInvalidRating     = errors.New("invalid rating")
	ErrInvalidRewardSpec = errors.New("invalid reward spec")
	ErrUnknownTrack      = errors.New("unknown tier track")
)
