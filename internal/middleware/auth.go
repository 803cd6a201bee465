// internal/middleware/auth.go
package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"

	"github.com/printforge/marketplace-backend/internal/utils"
)

const userInfoKey = "user_info"

// Authenticator verifies bearer tokens against the identity provider's
// published signing keys. Keys are fetched via OIDC discovery and cached by
// the verifier.
type Authenticator struct {
	verifier *oidc.IDTokenVerifier
}

func NewAuthenticator(ctx context.Context, issuerURL, clientID string) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider at %s: %w", issuerURL, err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Authenticator{verifier: verifier}, nil
}

// Middleware rejects requests without a valid bearer token and stashes the
// verified identity on the request context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authorization header is required", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Authorization header must be a bearer token", nil))
			return
		}

		idToken, err := a.verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Invalid or expired token", err))
			return
		}

		var claims utils.KeycloakClaims
		if err := idToken.Claims(&claims); err != nil {
			utils.RespondError(c, utils.NewAppError(utils.ErrUnauthorized, "Failed to parse token claims", err))
			return
		}

		SetUserInfo(c, claims.ToUserInfo())
		c.Next()
	}
}

// SetUserInfo attaches an identity to the request. The auth middleware is the
// production caller; tests use it to stub authentication.
func SetUserInfo(c *gin.Context, info *utils.UserInfo) {
	c.Set(userInfoKey, info)
}

// GetUserInfo returns the identity set by the auth middleware. The bool is
// false on routes the middleware does not cover.
func GetUserInfo(c *gin.Context) (*utils.UserInfo, bool) {
	val, exists := c.Get(userInfoKey)
	if !exists {
		return nil, false
	}

	info, ok := val.(*utils.UserInfo)
	return info, ok
}

func GetUserID(c *gin.Context) string {
	if info, ok := GetUserInfo(c); ok {
		return info.ID
	}
	return ""
}
