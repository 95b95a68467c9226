package oidcx

import "github.com/golang-jwt/jwt/v5"

// GroupsClaim is the access-token claim carrying group membership.
const GroupsClaim = "cognito:groups"

// Groups extracts group membership from an access token WITHOUT verifying
// its signature. This is a deliberate trust boundary: the access token is
// only ever read immediately after it arrived in the same exchange as a
// fully verified id token, never accepted standalone from a caller. Any
// parse failure degrades to no groups, i.e. least privilege.
func Groups(accessToken string) []string {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil
	}

	raw, ok := claims[GroupsClaim].([]any)
	if !ok {
		return nil // absent claim means no groups, not an error
	}

	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		if s, ok := g.(string); ok {
			groups = append(groups, s)
		}
	}
	return groups
}

// HasGroup reports whether the access token's group claim contains the
// given group. False on any parse failure.
func HasGroup(accessToken, group string) bool {
	for _, g := range Groups(accessToken) {
		if g == group {
			return true
		}
	}
	return false
}
