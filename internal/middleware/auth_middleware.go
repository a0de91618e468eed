package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/app/services"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/auth"
)

// Context keys set by JWTAuth
const (
	UserIDKey   = "userID"
	UsernameKey = "username"
	ScopeKey    = "scope"
)

// AuthMiddleware authenticates requests and resolves the caller's scope
type AuthMiddleware struct {
	authService services.AuthService
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

func abortUnauthorized(c *gin.Context, details string) {
	detail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required").WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(detail))
}

// tokenFrom reads the bearer token from the Authorization header. Browsers
// downloading exports may pass it as the token query parameter instead.
func tokenFrom(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if q := c.Query("token"); q != "" {
			return q, true
		}
		return "", false
	}
	// Some clients wrap the header value in quotes.
	token, err := auth.ExtractBearerToken(strings.Trim(header, "\"'"))
	return token, err == nil
}

// JWTAuth validates the access token and stores the caller's scope in the context
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFrom(c)
		if !ok {
			abortUnauthorized(c, "Authorization header missing or malformed")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			HandleAPIError(c, err)
			return
		}
		scope, err := m.authService.ResolveScope(c.Request.Context(), claims.UserID)
		if err != nil {
			HandleAPIError(c, err)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(ScopeKey, scope)
		c.Next()
	}
}

// RequireLibrarian lets through librarians attached to a school and superusers
func (m *AuthMiddleware) RequireLibrarian() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := ScopeFrom(c)
		switch {
		case !scope.CanManageLibrary():
			HandleAPIError(c, apperrors.NewForbiddenError("librarian access required"))
		case !scope.IsSuperuser && !scope.HasSchool():
			HandleAPIError(c, apperrors.ErrNoSchoolAssigned)
		default:
			c.Next()
		}
	}
}

// RequireSuperuser lets through superusers only
func (m *AuthMiddleware) RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ScopeFrom(c).IsSuperuser {
			HandleAPIError(c, apperrors.NewForbiddenError("superuser access required"))
			return
		}
		c.Next()
	}
}

// ScopeFrom returns the scope stored by JWTAuth, or an empty scope that can see nothing.
func ScopeFrom(c *gin.Context) models.Scope {
	if v, ok := c.Get(ScopeKey); ok {
		if scope, ok := v.(models.Scope); ok {
			return scope
		}
	}
	return models.Scope{}
}
