package portal

import (
	"github.com/trezcool/masomo-portal/core/user"
)

// DefaultFallback is where the access-denied view points to when a Requirement names none.
const DefaultFallback = "/dashboard"

type Decision int

const (
	DecisionAllow Decision = iota
	DecisionSignIn
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionSignIn:
		return "sign_in"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Subject is whoever the guards are asked about.
type Subject interface {
	User() (user.User, bool)
	Permissions() user.PermissionSet
}

var _ Subject = (*Portal)(nil)

// Requirement restricts a view. Empty lists do not restrict anything.
type Requirement struct {
	Roles       []user.Role
	Permissions []user.Permission
	Fallback    string
}

func (r Requirement) FallbackPath() string {
	if r.Fallback == "" {
		return DefaultFallback
	}
	return r.Fallback
}

// CheckAuthenticated is the authentication guard.
func CheckAuthenticated(s Subject) Decision {
	if _, ok := s.User(); !ok {
		return DecisionSignIn
	}
	return DecisionAllow
}

// CheckAccess is the role/permission guard. It lets unauthenticated subjects
// through: CheckAuthenticated is expected to run first.
func CheckAccess(s Subject, req Requirement) Decision {
	usr, ok := s.User()
	if !ok {
		return DecisionAllow
	}
	if len(req.Roles) > 0 && !hasRole(req.Roles, usr.Role) {
		return DecisionDenied
	}
	if !s.Permissions().HasAll(req.Permissions...) {
		return DecisionDenied
	}
	return DecisionAllow
}

// Check runs both guards in order.
func Check(s Subject, req Requirement) Decision {
	if d := CheckAuthenticated(s); d != DecisionAllow {
		return d
	}
	return CheckAccess(s, req)
}

func hasRole(roles []user.Role, role user.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
