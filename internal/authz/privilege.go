package authz

// Quota is a usage ceiling attached to a privilege. Nil numeric fields mean
// unlimited.
type Quota struct {
	MaxItems  *uint32
	RateLimit *uint32
	Features  map[string]struct{}
}

// NewQuota builds a bounded quota with the given feature set.
func NewQuota(maxItems, rateLimit uint32, features ...string) *Quota {
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		set[f] = struct{}{}
	}
	return &Quota{MaxItems: &maxItems, RateLimit: &rateLimit, Features: set}
}

// HasFeature reports whether the quota grants the named feature.
func (q *Quota) HasFeature(name string) bool {
	if q == nil {
		return false
	}
	_, ok := q.Features[name]
	return ok
}

// AllowsItems reports whether count items fit under the item cap.
func (q *Quota) AllowsItems(count uint32) bool {
	if q == nil || q.MaxItems == nil {
		return true
	}
	return count <= *q.MaxItems
}

// Privilege is a named capability bundle minted at a minimum tier. A nil
// Quota means the privilege is unmetered: every feature is considered
// granted and no item or rate cap applies.
type Privilege struct {
	Name  string
	Tier  SubscriptionTier
	Quota *Quota
}

// IsAvailableForTier reports whether the privilege applies at tier t. A
// privilege minted at tier T is inherited by every higher tier.
func (p Privilege) IsAvailableForTier(t SubscriptionTier) bool {
	return t.IsAtLeast(p.Tier)
}

// HasFeature reports feature membership, treating an unlimited quota as
// granting every feature.
func (p Privilege) HasFeature(name string) bool {
	if p.Quota == nil {
		return true
	}
	return p.Quota.HasFeature(name)
}

// Unlimited reports whether the privilege carries no quota at all.
func (p Privilege) Unlimited() bool {
	return p.Quota == nil
}
