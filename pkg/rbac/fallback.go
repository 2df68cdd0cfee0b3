package rbac

import "time"

// Built-in group ids used when the remote configuration cannot be read.
const (
	FallbackAdminGroupID      = "5f0c6b52-8a41-4a7e-9d0e-3b7f6d2a91c4"
	FallbackPurchaserGroupID  = "b4e2d8a1-6c3f-4e59-8f17-2a9d0c6e5b38"
	FallbackInventoryGroupID  = "e81a3f07-4d2c-49b6-a5e0-7c1f9b3d6a25"
	FallbackTechPOSGroupID    = "0d9c7e14-3b8a-4f62-9e5d-1a4c8b7f2e90"
	fallbackITGroupID         = "2a7d4c91-0e6b-4f38-b1d5-9c3e8a6f0b27"
	fallbackFacilitiesGroupID = "71c5e3a8-9f2d-4b06-8e4a-6d0b2c9f1e53"
	fallbackHRGroupID         = "c3f8a2d6-5e1b-4a97-90c4-8b6e1d7a3f02"
	fallbackFinanceGroupID    = "94b1e6c0-2d7a-4c58-a3f9-0e5d8c2b7a61"
	fallbackTechGroupID       = "6e2f9a4d-8c1b-4d73-b0e6-5a3c7f9d1b84"
	fallbackOperationsGroupID = "a0d3c7e5-1f8b-4e2a-9c64-3b7e0f5a8d19"
)

func strPtr(s string) *string { return &s }

// fallbackGroupRoles is the compiled-in mapping for degraded mode
var fallbackGroupRoles = []GroupRole{
	{Title: "Help Desk Admins", GroupID: FallbackAdminGroupID, Kind: KindAdmin, IsActive: true},
	{Title: "IT Support", GroupID: fallbackITGroupID, Kind: KindDepartment, Department: strPtr("IT"), IsActive: true},
	{Title: "Facilities Support", GroupID: fallbackFacilitiesGroupID, Kind: KindDepartment, Department: strPtr("Facilities"), IsActive: true},
	{Title: "HR Support", GroupID: fallbackHRGroupID, Kind: KindDepartment, Department: strPtr("HR"), IsActive: true},
	{Title: "Finance Support", GroupID: fallbackFinanceGroupID, Kind: KindDepartment, Department: strPtr("Finance"), IsActive: true},
	{Title: "Tech Support", GroupID: fallbackTechGroupID, Kind: KindDepartment, Department: strPtr("Tech"), IsActive: true},
	{Title: "Operations Support", GroupID: fallbackOperationsGroupID, Kind: KindDepartment, Department: strPtr("Operations"), IsActive: true},
	{Title: "Tech POS Support", GroupID: FallbackTechPOSGroupID, Kind: KindSubtype, Department: strPtr("Tech"), Subtype: strPtr("POS"), IsActive: true},
	{Title: "Purchasing", GroupID: FallbackPurchaserGroupID, Kind: KindPurchaser, IsActive: true},
	{Title: "Inventory", GroupID: FallbackInventoryGroupID, Kind: KindInventory, IsActive: true},
}

// FallbackGroupRoles returns a deep copy of the built-in mapping
func FallbackGroupRoles() []GroupRole {
	roles := make([]GroupRole, len(fallbackGroupRoles))
	for i, role := range fallbackGroupRoles {
		role.Department = clonePtr(role.Department)
		role.Subtype = clonePtr(role.Subtype)
		roles[i] = role
	}
	return roles
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	return strPtr(*s)
}

// FallbackConfig builds the degraded-mode Config through the same constructor
// as a remote one, so callers never special-case it.
func FallbackConfig(now time.Time) *Config {
	return NewConfig(fallbackGroupRoles, SourceFallback, now)
}
