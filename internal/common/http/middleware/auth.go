package middleware

import (
	"context"
	"strings"

	pkgerrors "azsnap/pkg/errors"
	"azsnap/pkg/utils/contextkey"
	"azsnap/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig holds token validation settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// BearerAuthMiddleware enforces JWT validation on protected routes.
// The subject claim identifies the operator triggering snapshot runs.
func BearerAuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithErrorCode(c, pkgerrors.Unauthorized, "missing bearer token")
			return
		}

		claims := jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !parsed.Valid {
			code := pkgerrors.TokenInvalid
			if err != nil && strings.Contains(err.Error(), "expired") {
				code = pkgerrors.TokenExpired
			}
			response.AbortWithErrorCode(c, code, "")
			return
		}
		if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			response.AbortWithErrorCode(c, pkgerrors.TokenInvalid, "unexpected issuer")
			return
		}

		c.Set("operator", claims.Subject)
		ctx := context.WithValue(c.Request.Context(), contextkey.Operator, claims.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
