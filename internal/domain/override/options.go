// Package override detects guest-submitted, campaign-sponsored actions.
package override

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithDesignatedReviewer sets the stable account id of the reviewer who
// judges guest actions. Leaving it empty makes guest actions fail closed.
func WithDesignatedReviewer(accountID string) Option {
	return func(r *Resolver) {
		r.designatedID = strings.TrimSpace(accountID)
	}
}

// WithGuestRole sets the role tag that marks a submitter as a guest.
func WithGuestRole(role string) Option {
	return func(r *Resolver) {
		if role != "" {
			r.guestRole = role
		}
	}
}

// WithGuestUnits sets the organizational units treated as external/guest.
func WithGuestUnits(units []string) Option {
	return func(r *Resolver) {
		for _, unit := range units {
			unit = strings.ToLower(strings.TrimSpace(unit))
			if unit != "" {
				r.guestUnits[unit] = struct{}{}
			}
		}
	}
}

// WithCacheTTL sets how long the resolved designated account is cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.cache = gocache.New(ttl, 2*ttl)
		}
	}
}
