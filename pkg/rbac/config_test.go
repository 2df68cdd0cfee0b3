package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupKind(t *testing.T) {
	tests := []struct {
		raw     string
		subtype string
		want    GroupKind
		wantErr bool
	}{
		{"admin", "", KindAdmin, false},
		{" Department ", "", KindDepartment, false},
		{"department", "POS", KindSubtype, false},
		{"department", "   ", KindDepartment, false},
		{"subtype", "", KindSubtype, false},
		{"visibility", "", KindVisibility, false},
		{"purchaser", "", KindPurchaser, false},
		{"inventory", "", KindInventory, false},
		{"superuser", "", "", true},
		{"", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.subtype, func(t *testing.T) {
			got, err := ParseGroupKind(tt.raw, tt.subtype)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupKind_Elevated(t *testing.T) {
	assert.True(t, KindAdmin.Elevated())
	assert.True(t, KindDepartment.Elevated())
	assert.True(t, KindSubtype.Elevated())
	assert.True(t, KindPurchaser.Elevated())
	assert.True(t, KindInventory.Elevated())
	assert.False(t, KindVisibility.Elevated())
}

func TestRawGroupRole_ToGroupRole(t *testing.T) {
	t.Run("optional fields stay absent", func(t *testing.T) {
		role, err := RawGroupRole{Title: "Admins", GroupID: " g ", GroupType: "admin", IsActive: true}.ToGroupRole()
		require.NoError(t, err)
		assert.Equal(t, "g", role.GroupID)
		assert.Nil(t, role.Department)
		assert.Nil(t, role.Subtype)
	})

	t.Run("department with subtype", func(t *testing.T) {
		role, err := RawGroupRole{GroupID: "g", GroupType: "department", Department: "Tech", ProblemTypeSub: "POS"}.ToGroupRole()
		require.NoError(t, err)
		assert.Equal(t, KindSubtype, role.Kind)
		require.NotNil(t, role.Department)
		require.NotNil(t, role.Subtype)
		assert.Equal(t, "Tech", *role.Department)
		assert.Equal(t, "POS", *role.Subtype)
	})

	t.Run("missing group id", func(t *testing.T) {
		_, err := RawGroupRole{Title: "Broken", GroupType: "admin"}.ToGroupRole()
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := RawGroupRole{GroupID: "g", GroupType: "owner"}.ToGroupRole()
		assert.Error(t, err)
	})
}

func TestNewConfig(t *testing.T) {
	cfg := testConfig()

	assert.Len(t, cfg.AllowedGroupIDs, 8)
	assert.Equal(t, []string{gAdmin}, cfg.AdminGroupIDs.Sorted())
	assert.Equal(t, []string{gHR, gTech, gTechPOS}, cfg.DepartmentGroupIDs.Sorted())
	assert.Equal(t, []string{gV1, gV2}, cfg.VisibilityGroupIDs.Sorted())
	assert.Equal(t, []string{gPurchasing}, cfg.PurchaserGroupIDs.Sorted())
	assert.Equal(t, []string{gInventory}, cfg.InventoryGroupIDs.Sorted())

	assert.Equal(t, "Tech", cfg.GroupDepartment[gTech])
	assert.Equal(t, "Tech", cfg.GroupDepartment[gTechPOS])
	assert.Equal(t, SubtypeRestriction{Department: "Tech", Subtype: "POS"}, cfg.GroupSubtype[gTechPOS])

	for _, id := range []string{gAdmin, gTech, gHR, gTechPOS, gPurchasing, gInventory} {
		assert.True(t, cfg.IsElevatedGroup(id), id)
	}
	assert.False(t, cfg.IsElevatedGroup(gV1))
}

func TestNewConfig_InactiveRowsExcluded(t *testing.T) {
	cfg := testConfig()

	sets := []GroupSet{
		cfg.AllowedGroupIDs, cfg.ElevatedGroupIDs, cfg.AdminGroupIDs, cfg.DepartmentGroupIDs,
		cfg.PurchaserGroupIDs, cfg.InventoryGroupIDs, cfg.VisibilityGroupIDs,
	}
	for _, set := range sets {
		assert.False(t, set.Has(gInactive))
	}
	assert.NotContains(t, cfg.GroupDepartment, gInactive)
}

func TestGroupSet_NilSafe(t *testing.T) {
	var set GroupSet
	assert.False(t, set.Has("x"))
	assert.Empty(t, set.Sorted())

	var cfg *Config
	assert.False(t, cfg.IsElevatedGroup("x"))
}

func TestFallbackConfig(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := FallbackConfig(now)

	assert.Equal(t, SourceFallback, cfg.Source)
	assert.Equal(t, now, cfg.LoadedAt)
	assert.Equal(t, []string{FallbackAdminGroupID}, cfg.AdminGroupIDs.Sorted())
	assert.True(t, cfg.PurchaserGroupIDs.Has(FallbackPurchaserGroupID))
	assert.True(t, cfg.InventoryGroupIDs.Has(FallbackInventoryGroupID))
	assert.Equal(t, SubtypeRestriction{Department: "Tech", Subtype: "POS"}, cfg.GroupSubtype[FallbackTechPOSGroupID])

	summary := cfg.Summary()
	assert.Equal(t, []string{"Facilities", "Finance", "HR", "IT", "Operations", "Tech"}, summary.Departments)
	assert.Equal(t, 7, summary.DepartmentGroups)
	assert.Equal(t, 0, summary.VisibilityGroups)
}

func TestFallbackConfig_SameShapeAsRemote(t *testing.T) {
	fallback := FallbackConfig(time.Unix(0, 0))
	remote := NewConfig(FallbackGroupRoles(), SourceRemote, time.Unix(0, 0))

	remote.Source = SourceFallback
	assert.Equal(t, fallback, remote)
}

func TestFallbackGroupRoles_ReturnsCopy(t *testing.T) {
	roles := FallbackGroupRoles()
	roles[0].GroupID = "mutated"

	assert.Equal(t, FallbackAdminGroupID, FallbackGroupRoles()[0].GroupID)
}

func TestFallbackGroupRoles_CopiesOptionalFields(t *testing.T) {
	before := FallbackConfig(time.Unix(0, 0))

	for _, role := range FallbackGroupRoles() {
		if role.Department != nil {
			*role.Department = "mutated"
		}
		if role.Subtype != nil {
			*role.Subtype = "mutated"
		}
	}

	fresh := FallbackGroupRoles()
	require.NotNil(t, fresh[1].Department)
	assert.Equal(t, "IT", *fresh[1].Department)
	require.NotNil(t, fresh[7].Subtype)
	assert.Equal(t, "POS", *fresh[7].Subtype)
	assert.Equal(t, before, FallbackConfig(time.Unix(0, 0)))
}

func TestConfig_Summary(t *testing.T) {
	summary := testConfig().Summary()

	assert.Equal(t, SourceRemote, summary.Source)
	assert.Equal(t, 8, summary.AllowedGroups)
	assert.Equal(t, 1, summary.AdminGroups)
	assert.Equal(t, 3, summary.DepartmentGroups)
	assert.Equal(t, 2, summary.VisibilityGroups)
	assert.Equal(t, []string{"HR", "Tech"}, summary.Departments)
}
