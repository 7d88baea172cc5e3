package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRank(t *testing.T) {
	assert.Equal(t, 1, Rank(RoleFirefighter))
	assert.Equal(t, 13, Rank(RoleChief))
	assert.Equal(t, 15, Rank(RoleSuperUser))
	assert.Equal(t, 0, Rank("made_up_role"))
	assert.Equal(t, 0, Rank(""))
}

func TestAtLeast(t *testing.T) {
	assert.True(t, AtLeast(RoleChief, RoleChief))
	assert.True(t, AtLeast(RoleAdmin, RoleChief))
	assert.False(t, AtLeast(RoleDeputy, RoleChief))
	// unknown roles rank 0 and fail every threshold
	assert.False(t, AtLeast("made_up_role", RoleFirefighter))
}

func TestPrimaryRole(t *testing.T) {
	assert.Equal(t, RoleChief, PrimaryRole([]string{RoleTraining, RoleChief, RoleFirefighter}))
	assert.Equal(t, RoleFirefighter, PrimaryRole([]string{RoleFirefighter}))
	assert.Equal(t, "", PrimaryRole(nil))
}

func TestOverrideRolesAllowEverything(t *testing.T) {
	for _, set := range [][]string{{RoleAdmin}, {RoleSuperUser}, {RoleFirefighter, RoleAdmin}} {
		for _, cat := range Categories {
			assert.True(t, CanView(set, cat), "view %v %s", set, cat)
			assert.True(t, CanPost(set, cat), "post %v %s", set, cat)
			assert.True(t, CanDelete(set, cat), "delete %v %s", set, cat)
		}
	}
}

func TestCanView(t *testing.T) {
	ff := []string{RoleFirefighter}

	assert.True(t, CanView(ff, CategoryWestWing))
	assert.True(t, CanView(ff, CategoryTraining))
	assert.True(t, CanView(ff, CategoryFirePrevention))
	assert.True(t, CanView(ff, CategoryRepairDivision))

	assert.False(t, CanView(ff, CategoryAlarmDivision))
	assert.True(t, CanView([]string{RoleAlarmDivision}, CategoryAlarmDivision))
	assert.True(t, CanView([]string{RoleAlarmSupervisor}, CategoryAlarmDivision))
	assert.True(t, CanView([]string{RoleChief}, CategoryAlarmDivision))

	assert.False(t, CanView(ff, CategoryCommissioners))
	assert.False(t, CanView([]string{RoleAlarmSupervisor}, CategoryCommissioners))
	assert.True(t, CanView([]string{RoleFireCommissioner}, CategoryCommissioners))
	assert.True(t, CanView([]string{RoleDeputy}, CategoryCommissioners))

	// unknown category defaults to viewable
	assert.True(t, CanView(ff, "station-two"))
	// empty role set sees nothing
	assert.False(t, CanView(nil, CategoryWestWing))
}

func TestCanPost(t *testing.T) {
	cases := []struct {
		roles    []string
		category string
		want     bool
	}{
		{[]string{RoleFirefighter}, CategoryWestWing, false},
		{[]string{RoleDeputy}, CategoryWestWing, true},
		{[]string{RoleXO}, CategoryWestWing, true},
		{[]string{RoleTraining}, CategoryTraining, true},
		{[]string{RoleOfficer}, CategoryTraining, false},
		{[]string{RolePreventionCaptain}, CategoryFirePrevention, true},
		{[]string{RolePrevention}, CategoryFirePrevention, false},
		{[]string{RoleRepairSupervisor}, CategoryRepairDivision, true},
		{[]string{RoleRepairDivision}, CategoryRepairDivision, false},
		{[]string{RoleAlarmSupervisor}, CategoryAlarmDivision, true},
		{[]string{RoleAlarmDivision}, CategoryAlarmDivision, false},
		{[]string{RoleFireCommissioner}, CategoryCommissioners, true},
		{[]string{RoleChief}, CategoryCommissioners, true},
		{[]string{RoleAlarmSupervisor}, CategoryCommissioners, false},
		// unknown category accepts no posts
		{[]string{RoleChief}, "station-two", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanPost(tc.roles, tc.category), "%v %s", tc.roles, tc.category)
	}
}

func TestCanPostUnionOfRoles(t *testing.T) {
	// A multi-role user gets the union of each role's privileges.
	assert.True(t, CanPost([]string{RoleTraining}, CategoryTraining))
	assert.False(t, CanPost([]string{RoleTraining}, CategoryAlarmDivision))
	assert.True(t, CanPost([]string{RoleTraining, RoleChief}, CategoryAlarmDivision))
}

func TestCanDelete(t *testing.T) {
	assert.False(t, CanDelete([]string{RoleDeputy}, CategoryWestWing))
	assert.True(t, CanDelete([]string{RoleChief}, CategoryWestWing))
	assert.True(t, CanDelete([]string{RoleChief}, CategoryAlarmDivision))
	assert.False(t, CanDelete([]string{RoleAlarmSupervisor}, CategoryAlarmDivision))
	assert.True(t, CanDelete([]string{RoleFireCommissioner}, CategoryCommissioners))
	assert.False(t, CanDelete([]string{RoleChief}, "station-two"))
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidRole(RoleXO))
	assert.False(t, ValidRole("captain_of_nothing"))
	assert.True(t, ValidCategory(CategoryAlarmDivision))
	assert.False(t, ValidCategory("station-two"))
}
