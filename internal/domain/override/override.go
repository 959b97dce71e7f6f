// Package override detects guest-submitted, campaign-sponsored actions and
// collapses their review requirement to one designated reviewer. The
// designated reviewer is resolved by a stable configured account id; an
// unresolvable id fails closed rather than degrading to normal dual review.
package override

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/arbiter/internal/domain/model"
	gocache "github.com/patrickmn/go-cache"
)

// Default resolver configuration constants.
const (
	defaultGuestRole       = "guest"
	defaultCacheTTL        = 5 * time.Minute
	defaultCacheSweep      = 10 * time.Minute
	designatedCacheKeyBase = "designated:"
)

// Mode is the resolved review requirement.
type Mode string

const (
	// ModeDual leaves the normal review rules in force.
	ModeDual Mode = "dual"
	// ModeSingleOverride collapses review to the one designated reviewer.
	ModeSingleOverride Mode = "single_override"
)

// Decision is the resolver's output.
type Decision struct {
	Mode Mode
	// DesignatedReviewer is set only under ModeSingleOverride.
	DesignatedReviewer *model.Account
}

// AccountSource loads platform accounts by id.
type AccountSource interface {
	GetAccount(ctx context.Context, id string) (model.Account, error)
}

// Resolver decides dual vs single-override review for an action.
type Resolver struct {
	accounts     AccountSource
	designatedID string
	guestRole    string
	guestUnits   map[string]struct{}
	cache        *gocache.Cache
}

// NewResolver creates a Resolver with configuration options.
func NewResolver(accounts AccountSource, opts ...Option) *Resolver {
	r := &Resolver{
		accounts:   accounts,
		guestRole:  defaultGuestRole,
		guestUnits: make(map[string]struct{}),
		cache:      gocache.New(defaultCacheTTL, defaultCacheSweep),
	}

	// Apply all options
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve determines the review mode for an action. Guest submitters on
// sponsored campaigns get exactly one designated reviewer; everyone else
// keeps the normal rules. An unresolvable designated account is a hard
// failure: guest actions must never be judged by an unintended reviewer.
func (r *Resolver) Resolve(ctx context.Context, action model.Action, submitter model.Account, spec model.RewardSpec) (Decision, error) {
	if !r.isGuest(submitter) {
		return Decision{Mode: ModeDual}, nil
	}
	if action.CampaignID == "" || !spec.SponsoredCampaign {
		return Decision{Mode: ModeDual}, nil
	}

	if r.designatedID == "" {
		return Decision{}, fmt.Errorf(
			"%w: guest action %s on sponsored campaign %s but no designated reviewer configured",
			ErrMisconfiguredOverride, action.ID, action.CampaignID)
	}

	designated, err := r.designatedAccount(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf(
			"%w: designated reviewer %s cannot be resolved: %v",
			ErrMisconfiguredOverride, r.designatedID, err)
	}

	return Decision{Mode: ModeSingleOverride, DesignatedReviewer: &designated}, nil
}

// isGuest reports whether the submitter carries the guest role tag or sits
// in an organizational unit marked external/guest.
func (r *Resolver) isGuest(submitter model.Account) bool {
	if submitter.HasRole(r.guestRole) {
		return true
	}
	_, ok := r.guestUnits[strings.ToLower(submitter.Unit)]
	return ok
}

// designatedAccount resolves the configured reviewer account, cached so the
// hot judge path does not hit the account store on every guest action.
func (r *Resolver) designatedAccount(ctx context.Context) (model.Account, error) {
	key := designatedCacheKeyBase + r.designatedID
	if cached, ok := r.cache.Get(key); ok {
		if account, ok := cached.(model.Account); ok {
			return account, nil
		}
	}

	account, err := r.accounts.GetAccount(ctx, r.designatedID)
	if err != nil {
		return model.Account{}, err
	}
	r.cache.SetDefault(key, account)
	return account, nil
}
