package policy

import "strings"

type Role string

const (
	RoleUser              Role = "user"
	RoleSchoolCoordinator Role = "school_coordinator"
	RoleDistrictAdmin     Role = "district_admin"
	RoleProvinceAdmin     Role = "province_admin"
)

// ParseRole normalizes the role vocabularies that accumulated in older
// deployments: "admin" and "committee_member" carried province-wide school
// write privileges and fold into province_admin.
func ParseRole(raw string) (Role, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "user":
		return RoleUser, true
	case "school_coordinator":
		return RoleSchoolCoordinator, true
	case "district_admin":
		return RoleDistrictAdmin, true
	case "province_admin", "admin", "committee_member":
		return RoleProvinceAdmin, true
	default:
		return RoleUser, false
	}
}

// Actor is the authorization view of an authenticated user. Evaluation is
// pure: every decision depends only on the actor and the attributes of the
// target resource handed in by the caller.
type Actor struct {
	Role     Role
	District string
	SchoolID *int64
}

type ScopeKind int

const (
	ScopeNone ScopeKind = iota
	ScopeAll
	ScopeDistrict
	ScopeSchool
)

type Scope struct {
	Kind     ScopeKind
	District string
	SchoolID int64
}

// SchoolScope says which slice of the school table the actor may list.
func (a Actor) SchoolScope() Scope {
	switch a.Role {
	case RoleProvinceAdmin:
		return Scope{Kind: ScopeAll}
	case RoleDistrictAdmin:
		if a.District == "" {
			return Scope{Kind: ScopeNone}
		}
		return Scope{Kind: ScopeDistrict, District: a.District}
	case RoleSchoolCoordinator:
		if a.SchoolID == nil {
			return Scope{Kind: ScopeNone}
		}
		return Scope{Kind: ScopeSchool, SchoolID: *a.SchoolID}
	default:
		return Scope{Kind: ScopeNone}
	}
}

func (a Actor) CanViewSchool(district string, schoolID int64) bool {
	switch a.Role {
	case RoleProvinceAdmin:
		return true
	case RoleDistrictAdmin:
		return sameDistrict(a.District, district)
	case RoleSchoolCoordinator:
		return a.SchoolID != nil && *a.SchoolID == schoolID
	default:
		return false
	}
}

// CanWriteSchool covers create and update of a school in the given district.
func (a Actor) CanWriteSchool(district string) bool {
	switch a.Role {
	case RoleProvinceAdmin:
		return true
	case RoleDistrictAdmin:
		return sameDistrict(a.District, district)
	default:
		return false
	}
}

func (a Actor) CanDeleteSchool() bool {
	return a.Role == RoleProvinceAdmin
}

func (a Actor) CanCreateUsers() bool {
	return a.Role == RoleProvinceAdmin || a.Role == RoleDistrictAdmin
}

// CanAssignRole keeps a district_admin from minting accounts above their own
// station.
func (a Actor) CanAssignRole(role Role) bool {
	switch a.Role {
	case RoleProvinceAdmin:
		return true
	case RoleDistrictAdmin:
		return role != RoleProvinceAdmin
	default:
		return false
	}
}

// EffectiveDistrict resolves the district for a user being created. A
// district_admin's own district wins silently over whatever was requested; a
// province_admin's request passes through untouched.
func (a Actor) EffectiveDistrict(requested *string) *string {
	if a.Role == RoleDistrictAdmin {
		district := a.District
		return &district
	}
	return requested
}

func sameDistrict(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
