package authz

// Bulletin categories. The category tag on a bulletin row must be one
// of these; unknown tags are viewable by everyone but accept no posts.
const (
	CategoryWestWing       = "west-wing"
	CategoryTraining       = "training"
	CategoryFirePrevention = "fire-prevention"
	CategoryRepairDivision = "repair-division"
	CategoryAlarmDivision  = "alarm-division"
	CategoryCommissioners  = "commissioners"
)

// Categories lists every known bulletin category.
var Categories = []string{
	CategoryWestWing,
	CategoryTraining,
	CategoryFirePrevention,
	CategoryRepairDivision,
	CategoryAlarmDivision,
	CategoryCommissioners,
}

// ValidCategory reports whether the category is a known one.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// CanView decides whether a user holding the given role set may read
// bulletins in the category. admin and super_user see everything.
// The four general categories are open to all members; alarm-division
// and commissioners are restricted. Unknown categories default to
// viewable so a stale client never loses content it already had.
func CanView(roles []string, category string) bool {
	if IsOverride(roles) {
		return true
	}
	for _, role := range roles {
		if singleRoleCanView(role, category) {
			return true
		}
	}
	return false
}

func singleRoleCanView(role, category string) bool {
	switch category {
	case CategoryWestWing, CategoryTraining, CategoryFirePrevention, CategoryRepairDivision:
		return true
	case CategoryAlarmDivision:
		return role == RoleAlarmDivision || role == RoleAlarmSupervisor || AtLeast(role, RoleChief)
	case CategoryCommissioners:
		return AtLeast(role, RoleFireCommissioner)
	default:
		return true
	}
}

// CanPost decides whether a user holding the given role set may post
// into the category. Unknown categories accept no posts.
func CanPost(roles []string, category string) bool {
	if IsOverride(roles) {
		return true
	}
	for _, role := range roles {
		if singleRoleCanPost(role, category) {
			return true
		}
	}
	return false
}

func singleRoleCanPost(role, category string) bool {
	switch category {
	case CategoryWestWing:
		return AtLeast(role, RoleDeputy)
	case CategoryTraining:
		return role == RoleTraining || AtLeast(role, RoleChief)
	case CategoryFirePrevention:
		return role == RolePreventionCaptain || AtLeast(role, RoleChief)
	case CategoryRepairDivision:
		return role == RoleRepairSupervisor || AtLeast(role, RoleChief)
	case CategoryAlarmDivision:
		return role == RoleAlarmSupervisor || AtLeast(role, RoleChief)
	case CategoryCommissioners:
		return AtLeast(role, RoleFireCommissioner)
	default:
		return false
	}
}

// CanDelete decides whether a user holding the given role set may
// delete bulletins in the category. The bulletin's own author may
// always delete it; that exception is enforced by the bulletin
// repository, not here.
func CanDelete(roles []string, category string) bool {
	if IsOverride(roles) {
		return true
	}
	for _, role := range roles {
		if singleRoleCanDelete(role, category) {
			return true
		}
	}
	return false
}

func singleRoleCanDelete(role, category string) bool {
	switch category {
	case CategoryWestWing, CategoryTraining, CategoryFirePrevention,
		CategoryRepairDivision, CategoryAlarmDivision:
		return AtLeast(role, RoleChief)
	case CategoryCommissioners:
		return AtLeast(role, RoleFireCommissioner)
	default:
		return false
	}
}
