package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEntitlementFreeTaskRead(t *testing.T) {
	p := ResolveEntitlement(TierFree, ResourceTasks, ActionRead)
	require.NotNil(t, p)
	assert.Equal(t, "basic_task_access", p.Name)
	require.NotNil(t, p.Quota)
	require.NotNil(t, p.Quota.MaxItems)
	assert.Equal(t, uint32(100), *p.Quota.MaxItems)
	require.NotNil(t, p.Quota.RateLimit)
	assert.Equal(t, uint32(10), *p.Quota.RateLimit)
	assert.False(t, p.HasFeature(FeatureAdvancedFilter))
	assert.False(t, p.HasFeature(FeatureExport))
}

func TestResolveEntitlementProTaskRead(t *testing.T) {
	p := ResolveEntitlement(TierPro, ResourceTasks, ActionRead)
	require.NotNil(t, p)
	assert.Equal(t, "pro_task_access", p.Name)
	assert.True(t, p.HasFeature(FeatureAdvancedFilter))
	assert.True(t, p.HasFeature(FeatureExport))
	assert.False(t, p.HasFeature(FeatureBatchOperations))
	require.NotNil(t, p.Quota.MaxItems)
	assert.Equal(t, uint32(10000), *p.Quota.MaxItems)
}

func TestResolveEntitlementEnterpriseIsUnlimited(t *testing.T) {
	for _, action := range []Action{ActionRead, ActionWrite} {
		p := ResolveEntitlement(TierEnterprise, ResourceTasks, action)
		require.NotNil(t, p, "tasks %s", action)
		assert.True(t, p.Unlimited())
		// No quota means every feature is granted.
		assert.True(t, p.HasFeature(FeatureExport))
		assert.True(t, p.HasFeature(FeatureBatchOperations))
		assert.True(t, p.Quota.AllowsItems(1<<31))
	}
}

func TestResolveEntitlementMissingTuple(t *testing.T) {
	assert.Nil(t, ResolveEntitlement(TierFree, ResourceTasks, ActionWrite))
	assert.Nil(t, ResolveEntitlement(TierFree, ResourceUsers, ActionRead))
	assert.Nil(t, ResolveEntitlement(TierPro, ResourceRoles, ActionWrite))
}

func TestResolveEntitlementReturnsCopy(t *testing.T) {
	p := ResolveEntitlement(TierPro, ResourceTasks, ActionWrite)
	require.NotNil(t, p)
	p.Name = "mutated"
	again := ResolveEntitlement(TierPro, ResourceTasks, ActionWrite)
	assert.Equal(t, "pro_task_write", again.Name)
}

func TestPrivilegeTierAvailabilityIsMonotonic(t *testing.T) {
	tiers := []SubscriptionTier{TierFree, TierPro, TierEnterprise}
	for i, minted := range tiers {
		p := Privilege{Name: "probe", Tier: minted}
		for j, at := range tiers {
			assert.Equal(t, j >= i, p.IsAvailableForTier(at),
				"privilege minted at %s checked at %s", minted, at)
		}
	}
}

func TestQuotaAllowsItems(t *testing.T) {
	q := NewQuota(3, 1)
	assert.True(t, q.AllowsItems(0))
	assert.True(t, q.AllowsItems(3))
	assert.False(t, q.AllowsItems(4))

	var unbounded *Quota
	assert.True(t, unbounded.AllowsItems(1<<30))
	assert.False(t, unbounded.HasFeature(FeatureExport))
}

// Every resource/action column of the table must widen as tiers rise: a
// higher tier either lifts the item cap (nil meaning unlimited) or keeps
// it, and never loses a feature a lower tier grants. Enumerating the table
// keeps future rows honest.
func TestEntitlementTableWidensWithTier(t *testing.T) {
	ladder := []SubscriptionTier{TierFree, TierPro, TierEnterprise}

	type column struct {
		resource Resource
		action   Action
	}
	columns := make(map[column]struct{})
	for key := range entitlements {
		columns[column{key.Resource, key.Action}] = struct{}{}
	}
	require.NotEmpty(t, columns)

	for col := range columns {
		var prev *Privilege
		for _, tier := range ladder {
			cur := ResolveEntitlement(tier, col.resource, col.action)
			if cur == nil || prev == nil {
				prev = cur
				continue
			}

			prevItems := maxItemsOf(prev)
			curItems := maxItemsOf(cur)
			if prevItems != nil {
				if curItems != nil {
					assert.GreaterOrEqual(t, *curItems, *prevItems,
						"%s %s: %s caps items below %s", col.resource, col.action, cur.Tier, prev.Tier)
				}
			} else {
				assert.Nil(t, curItems,
					"%s %s: %s reintroduces an item cap over unlimited %s", col.resource, col.action, cur.Tier, prev.Tier)
			}

			if prev.Quota != nil {
				for feature := range prev.Quota.Features {
					assert.True(t, cur.HasFeature(feature),
						"%s %s: %s drops feature %q granted at %s", col.resource, col.action, cur.Tier, feature, prev.Tier)
				}
			}
			prev = cur
		}
	}
}

func maxItemsOf(p *Privilege) *uint32 {
	if p == nil || p.Quota == nil {
		return nil
	}
	return p.Quota.MaxItems
}
