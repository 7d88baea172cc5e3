// Package authz implements the department's role hierarchy and the
// per-category bulletin permission rules. Everything here is pure:
// callers load a user's role set from the database and pass it in.
package authz

// Role names as stored in users.role and user_roles.role.
const (
	RoleFirefighter        = "firefighter"
	RoleRepairDivision     = "repair_division"
	RoleAlarmDivision      = "alarm_division"
	RoleOfficer            = "officer"
	RolePrevention         = "prevention"
	RoleRepairSupervisor   = "repair_division_supervisor"
	RoleTraining           = "training"
	RolePreventionCaptain  = "prevention_captain"
	RoleAlarmSupervisor    = "alarm_supervisor"
	RoleFireCommissioner   = "fire_commissioner"
	RoleDeputy             = "deputy"
	RoleXO                 = "XO"
	RoleChief              = "chief"
	RoleAdmin              = "admin"
	RoleSuperUser          = "super_user"
)

// rankTable is a fixed total order over role names. Higher means more
// privileged. Roles absent from the table rank 0 and fail every
// threshold check.
var rankTable = map[string]int{
	RoleFirefighter:       1,
	RoleRepairDivision:    2,
	RoleAlarmDivision:     3,
	RoleOfficer:           4,
	RolePrevention:        5,
	RoleRepairSupervisor:  6,
	RoleTraining:          7,
	RolePreventionCaptain: 8,
	RoleAlarmSupervisor:   9,
	RoleFireCommissioner:  10,
	RoleDeputy:            11,
	RoleXO:                12,
	RoleChief:             13,
	RoleAdmin:             14,
	RoleSuperUser:         15,
}

// Rank returns the numeric rank of a role, or 0 for unknown roles.
func Rank(role string) int { return rankTable[role] }

// ValidRole reports whether the role name exists in the hierarchy.
func ValidRole(role string) bool {
	_, ok := rankTable[role]
	return ok
}

// AtLeast reports whether role ranks at or above the threshold role.
func AtLeast(role, threshold string) bool {
	return Rank(role) >= Rank(threshold)
}

// PrimaryRole returns the highest-ranked member of a role set. It is
// used to keep the legacy users.role column in sync whenever the role
// set changes. Returns "" for an empty set; callers must reject empty
// role sets before persisting.
func PrimaryRole(roles []string) string {
	best := ""
	for _, r := range roles {
		if best == "" || Rank(r) > Rank(best) {
			best = r
		}
	}
	return best
}

// HasRole reports whether the role set contains the given role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsOverride reports whether the role set carries a universal override:
// admin and super_user satisfy every view/post/delete check.
func IsOverride(roles []string) bool {
	return HasRole(roles, RoleAdmin) || HasRole(roles, RoleSuperUser)
}

// AnyAtLeast reports whether any role in the set ranks at or above the
// threshold role. Permission is the union of each member role's
// privileges, never their intersection.
func AnyAtLeast(roles []string, threshold string) bool {
	for _, r := range roles {
		if AtLeast(r, threshold) {
			return true
		}
	}
	return false
}
