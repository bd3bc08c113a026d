package user

import (
	"strings"

	"github.com/trezcool/masomo-portal/core"
)

// User is the identity record of the signed-in person, as returned by the backend.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Avatar    string `json:"avatar,omitempty"`

	// Permissions are explicit per-user grants. They are added to the role's
	// permissions, never subtracted from them.
	Permissions []Permission `json:"permissions,omitempty"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName falls back to the email when no name is known.
func (u User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsParent() bool  { return u.Role == RoleParent }

// ResolvedPermissions is the union of the user's explicit grants and its role's permissions.
func (u User) ResolvedPermissions() PermissionSet {
	return NewPermissionSet(u.Permissions...).Union(PermissionsFor(u.Role))
}

// Clean normalizes a user record received from the outside world.
func (u *User) Clean() {
	u.Email = core.CleanString(u.Email, true /* lower */)
	u.FirstName = core.CleanString(u.FirstName)
	u.LastName = core.CleanString(u.LastName)
	if role, ok := ParseRole(string(u.Role)); ok {
		u.Role = role
	}
}

// IsZero reports whether no user is set.
func (u User) IsZero() bool {
	return u.ID == "" && u.Email == ""
}
