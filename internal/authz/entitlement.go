package authz

// entitlementKey addresses one row of the entitlement table. Rows are keyed
// by exact tuples; availability across higher tiers is decided by
// Privilege.IsAvailableForTier, never by duplicating rows.
type entitlementKey struct {
	Tier     SubscriptionTier
	Resource Resource
	Action   Action
}

// Feature names granted by entitlement rows.
const (
	FeatureAdvancedFilter  = "advanced_filter"
	FeatureExport          = "export"
	FeatureBatchOperations = "batch_operations"
)

// entitlements is the fixed tier entitlement table. A missing tuple means
// the action carries no usage metadata for that tier; it is not a denial.
var entitlements = map[entitlementKey]Privilege{
	{TierFree, ResourceTasks, ActionRead}: {
		Name:  "basic_task_access",
		Tier:  TierFree,
		Quota: NewQuota(100, 10),
	},
	{TierPro, ResourceTasks, ActionRead}: {
		Name:  "pro_task_access",
		Tier:  TierPro,
		Quota: NewQuota(10000, 100, FeatureAdvancedFilter, FeatureExport),
	},
	{TierEnterprise, ResourceTasks, ActionRead}: {
		Name: "enterprise_task_access",
		Tier: TierEnterprise,
	},
	{TierPro, ResourceTasks, ActionWrite}: {
		Name:  "pro_task_write",
		Tier:  TierPro,
		Quota: NewQuota(1000, 50, FeatureBatchOperations),
	},
	{TierEnterprise, ResourceTasks, ActionWrite}: {
		Name: "enterprise_task_write",
		Tier: TierEnterprise,
	},
}

// ResolveEntitlement returns the privilege a tier confers for the given
// resource and action, or nil when the table has no row for the tuple.
func ResolveEntitlement(tier SubscriptionTier, resource Resource, action Action) *Privilege {
	if p, ok := entitlements[entitlementKey{tier, resource, action}]; ok {
		priv := p
		return &priv
	}
	return nil
}
