package middleware

import (
	"net/http"

	"petshelter/internal/modules/auth"
	"petshelter/internal/pkg/jwt"
	"petshelter/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier checks the signature and expiry of an access token.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// DenyChecker reports whether an access token was revoked before it expired.
type DenyChecker interface {
	IsAccessDenied(token string) bool
}

// JWTAuth admits requests carrying a valid, non-revoked access token and stores
// user_id, email and role in the context. The token is read from the Authorization
// header, or from the access_token cookie when the header is absent.
func JWTAuth(verifier TokenVerifier, denied DenyChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.AccessTokenFromRequest(c)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			return
		}
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		if denied != nil && denied.IsAccessDenied(token) {
			response.Abort(c, http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
			return
		}

		c.Set("user_id", claims.AccountID)
		c.Set("email", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}
