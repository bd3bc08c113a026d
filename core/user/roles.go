package user

import (
	"sort"
	"strings"
)

// Role classifies a user. The set is closed.
type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

	rolePriorities = map[Role]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleParent:  10,
		RoleStudent: 1,
	}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent", Value: RoleParent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Administrator", Value: RoleAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// ParseRole accepts a role value or display name, case-insensitively.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, info := range Roles {
		if s == string(info.Value) || s == strings.ToLower(info.Name) {
			return info.Value, true
		}
	}
	return "", false
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// Title is the human-readable role name.
func (r Role) Title() string {
	for _, info := range Roles {
		if info.Value == r {
			return info.Name
		}
	}
	return string(r)
}

func RolePriority(role Role) int {
	return rolePriorities[role]
}

// MaxRolePriority returns the highest priority among roles.
func MaxRolePriority(roles []Role) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// Permission is an opaque capability checked by guards.
type Permission string

// Permissions
const (
	// Admin
	PermManageUsers         Permission = "manage_users"
	PermManageCourses       Permission = "manage_courses"
	PermManagePayments      Permission = "manage_payments"
	PermManageCertificates  Permission = "manage_certificates"
	PermManageAnnouncements Permission = "manage_announcements"
	PermManageSettings      Permission = "manage_settings"
	PermViewReports         Permission = "view_reports"

	// Teacher
	PermViewOwnCourses    Permission = "view_own_courses"
	PermManageOwnCourses  Permission = "manage_own_courses"
	PermCreateAssignments Permission = "create_assignments"
	PermGradeAssignments  Permission = "grade_assignments"
	PermViewStudents      Permission = "view_students"
	PermTakeAttendance    Permission = "take_attendance"
	PermMessageParents    Permission = "message_parents"

	// Student
	PermSubmitAssignments Permission = "submit_assignments"
	PermViewOwnGrades     Permission = "view_own_grades"
	PermViewCertificates  Permission = "view_certificates"
	PermEnrollCourses     Permission = "enroll_courses"

	// Parent
	PermViewChildProgress Permission = "view_child_progress"
	PermViewChildGrades   Permission = "view_child_grades"
	PermViewPayments      Permission = "view_payments"
	PermMakePayments      Permission = "make_payments"
	PermMessageTeachers   Permission = "message_teachers"

	// Shared
	PermViewAnnouncements Permission = "view_announcements"
)

// rolePermissions maps each role to its granted permissions.
// Entries are sets: the order only matters for display.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermManageUsers,
		PermManageCourses,
		PermManagePayments,
		PermManageCertificates,
		PermViewReports,
		PermManageSettings,
		PermManageAnnouncements,
		PermViewAnnouncements,
	},
	RoleTeacher: {
		PermViewOwnCourses,
		PermManageOwnCourses,
		PermCreateAssignments,
		PermGradeAssignments,
		PermViewStudents,
		PermTakeAttendance,
		PermMessageParents,
		PermViewAnnouncements,
	},
	RoleStudent: {
		PermViewOwnCourses,
		PermSubmitAssignments,
		PermViewOwnGrades,
		PermViewCertificates,
		PermEnrollCourses,
		PermViewAnnouncements,
	},
	RoleParent: {
		PermViewChildProgress,
		PermViewChildGrades,
		PermViewPayments,
		PermMakePayments,
		PermMessageTeachers,
		PermViewAnnouncements,
	},
}

// PermissionsFor returns the permissions granted to a role.
// Unknown roles get an empty set.
func PermissionsFor(role Role) PermissionSet {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return NewPermissionSet(rolePermissions[role]...)
	default:
		return NewPermissionSet()
	}
}

// RolePermissions returns a copy of the role's permissions in display order.
func RolePermissions(role Role) []Permission {
	perms := rolePermissions[role]
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// AllPermissions is the universe of known permissions.
func AllPermissions() PermissionSet {
	all := NewPermissionSet()
	for _, perms := range rolePermissions {
		for _, p := range perms {
			all[p] = struct{}{}
		}
	}
	return all
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether every permission in perms is held. An empty list is always held.
func (s PermissionSet) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

func (s PermissionSet) Len() int { return len(s) }

// Union returns a new set holding the permissions of both sets.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	res := make(PermissionSet, len(s)+len(other))
	for p := range s {
		res[p] = struct{}{}
	}
	for p := range other {
		res[p] = struct{}{}
	}
	return res
}

// IsSubsetOf reports whether every permission of s is in other.
func (s PermissionSet) IsSubsetOf(other PermissionSet) bool {
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// Slice returns the permissions sorted alphabetically.
func (s PermissionSet) Slice() []Permission {
	res := make([]Permission, 0, len(s))
	for p := range s {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}
