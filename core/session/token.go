package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FixtureTokenPrefix marks tokens minted locally for test identities.
const FixtureTokenPrefix = "masomo-test-"

var NowFunc = time.Now // mockable

func IsFixtureToken(token string) bool {
	return strings.HasPrefix(token, FixtureTokenPrefix)
}

// TokenExpired reports whether a bearer token must be refreshed before use.
// Fixture tokens never expire. Anything that is not a three-segment JWT, or
// whose claims cannot be decoded, is considered expired. The signature is not
// verified: only the backend can do that.
func TokenExpired(token string) bool {
	if IsFixtureToken(token) {
		return false
	}
	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !NowFunc().Before(exp.Time)
}
