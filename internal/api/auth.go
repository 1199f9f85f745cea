package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
	errNotStaff     = errors.New("staff privileges required")
)

// StaffClaims are the JWT claims accepted on privileged endpoints
type StaffClaims struct {
	Staff bool `json:"staff"`
	jwt.RegisteredClaims
}

// StaffAuth guards privileged endpoints with HS256 bearer tokens
type StaffAuth struct {
	secret []byte
	log    zerolog.Logger
}

// NewStaffAuth creates the staff guard. With an empty secret every
// privileged request is denied.
func NewStaffAuth(secret string, log zerolog.Logger) *StaffAuth {
	if secret == "" {
		log.Warn().Msg("ADMIN_JWT_SECRET not set, privileged endpoints will deny all requests")
	}
	return &StaffAuth{secret: []byte(secret), log: log}
}

// RequireStaff rejects requests without a valid staff token
func (a *StaffAuth) RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.authenticate(c.GetHeader("Authorization"))
		if err != nil {
			switch {
			case errors.Is(err, errMissingToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			case errors.Is(err, errNotStaff):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff privileges required"})
			default:
				a.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected staff token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			}
			return
		}

		c.Set("staff_subject", claims.Subject)
		c.Next()
	}
}

func (a *StaffAuth) authenticate(header string) (*StaffClaims, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	tokenStr = strings.TrimSpace(tokenStr)
	if !ok || tokenStr == "" {
		return nil, errMissingToken
	}
	if len(a.secret) == 0 {
		return nil, fmt.Errorf("%w: secret not configured", errInvalidToken)
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &StaffClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, errInvalidToken
	}

	claims, ok := parsed.Claims.(*StaffClaims)
	if !ok {
		return nil, errInvalidToken
	}
	if !claims.Staff {
		return nil, errNotStaff
	}
	return claims, nil
}
