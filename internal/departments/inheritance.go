package departments

// AnalyzeEffectivePermissions merges a chain of permission matrices into one
// effective view. The chain must already be ordered broadest first:
// organization, then each department level down to the most specific one.
// A narrower entry overrides a broader one only for the keys it explicitly
// sets; everything else falls through from the nearest ancestor that set it.
//
// The walk is a pure reduce: fetching matrices and determining the chain for
// a given user are repository concerns.
func AnalyzeEffectivePermissions(chain []PermissionMatrix) EffectivePermissions {
	eff := EffectivePermissions{
		Settings:    make(map[string]any),
		Inheritance: make(map[string]any),
		Compliance:  make(map[string]any),
		Chain:       make([]EntityRef, 0, len(chain)),
	}
	for _, m := range chain {
		overlay(eff.Settings, m.Settings)
		overlay(eff.Inheritance, m.Inheritance)
		overlay(eff.Compliance, m.Compliance)
		eff.Chain = append(eff.Chain, EntityRef{EntityType: m.EntityType, EntityID: m.EntityID})
	}
	return eff
}

func overlay(dst map[string]any, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
