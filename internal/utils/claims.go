// internal/utils/claims.go
package utils

import (
	"github.com/golang-jwt/jwt/v4"
)

// KeycloakClaims is the slice of the identity provider's ID-token claims the
// gateway reads. RegisteredClaims supplies sub, iss and the expiry set.
type KeycloakClaims struct {
	jwt.RegisteredClaims
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	PreferredUsername string `json:"preferred_username"`
	Azp               string `json:"azp"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// UserInfo is the authenticated caller as the rest of the gateway sees it.
type UserInfo struct {
	ID              string
	Username        string
	Email           string
	AuthorizedParty string
	Roles           []string
}

func (c *KeycloakClaims) ToUserInfo() *UserInfo {
	return &UserInfo{
		ID:              c.Subject,
		Username:        c.PreferredUsername,
		Email:           c.Email,
		AuthorizedParty: c.Azp,
		Roles:           c.RealmAccess.Roles,
	}
}

func (u *UserInfo) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
