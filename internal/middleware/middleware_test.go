package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/schoollib/library/internal/app/models"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    dto.ErrorCode   `json:"code"`
		Message string          `json:"message"`
		Field   string          `json:"field"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body
}

func TestErrorDetailFor(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"not found", fmt.Errorf("load: %w", apperrors.ErrBookNotFound), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"conflict", apperrors.ErrStudentIDAlreadyExists, http.StatusConflict, dto.ErrorCodeConflict},
		{"ledger rule", apperrors.ErrNoCopiesAvailable, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"import format", apperrors.NewCustomError(apperrors.ErrImportFormat, "bad header"), http.StatusBadRequest, dto.ErrorCodeImportFormat},
		{"forbidden", apperrors.NewForbiddenError("nope"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{"no school", apperrors.ErrNoSchoolAssigned, http.StatusForbidden, dto.ErrorCodeNoSchoolAssign},
		{"bad login", apperrors.ErrInvalidCredentials, http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials},
		{"expired", apperrors.ErrTokenExpired, http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
		{"disabled", apperrors.ErrAccountDisabled, http.StatusForbidden, dto.ErrorCodeAccountDisabled},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, detail := errorDetailFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, detail.Code)
		})
	}
}

func TestErrorDetailHidesInternalMessage(t *testing.T) {
	_, detail := errorDetailFor(errors.New("pq: password authentication failed"))
	assert.Equal(t, "Internal server error", detail.Message)
}

func TestHandleAPIErrorCarriesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/imports/students/batch", nil)

	rows := []string{"Row 2: Missing student_id or name"}
	HandleAPIError(c, apperrors.NewCustomError(apperrors.ErrValidationFailed, "Validation failed (1 errors)").WithDetails(rows))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "Validation failed (1 errors)", body.Error.Message)
	assert.JSONEq(t, `["Row 2: Missing student_id or name"]`, string(body.Error.Details))
	assert.True(t, c.IsAborted())
}

func TestBindJSONReportsFields(t *testing.T) {
	router := gin.New()
	router.POST("/issue", func(c *gin.Context) {
		var req dto.IssueBookRequest
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/issue", strings.NewReader(`{"bookId": 4}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrorCodeValidationFailed, decodeError(t, w).Error.Code)
}

func TestParamIDAndQueryID(t *testing.T) {
	router := gin.New()
	router.GET("/books/:id", func(c *gin.Context) {
		id, ok := ParamID(c, "id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "category": QueryID(c, "category")})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decodeError(t, w).Error.Field)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/7?category=x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"category":null}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/books/7?category=3", nil))
	assert.JSONEq(t, `{"id":7,"category":3}`, w.Body.String())
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(zerolog.Nop()))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDKey))
	assert.Equal(t, w.Header().Get(RequestIDKey), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDKey, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

// stubAuth resolves a fixed token to a fixed scope.
type stubAuth struct {
	token string
	scope models.Scope
}

func (s *stubAuth) Login(_ context.Context, _ *dto.LoginRequest) (*dto.AuthResponse, error) {
	return nil, apperrors.ErrInvalidCredentials
}

func (s *stubAuth) ValidateToken(token string) (*auth.Claims, error) {
	if token != s.token {
		return nil, apperrors.ErrTokenInvalid
	}
	return &auth.Claims{UserID: s.scope.UserID, Username: "librarian"}, nil
}

func (s *stubAuth) ResolveScope(_ context.Context, _ int64) (models.Scope, error) {
	return s.scope, nil
}

func authRouter(scope models.Scope) *gin.Engine {
	m := NewAuthMiddleware(&stubAuth{token: "good", scope: scope})
	router := gin.New()
	authed := router.Group("", m.JWTAuth())
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": ScopeFrom(c).UserID, "username": c.GetString(UsernameKey)})
	})
	authed.GET("/library", m.RequireLibrarian(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	authed.GET("/admin", m.RequireSuperuser(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func get(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	school := int64(3)
	router := authRouter(models.Scope{UserID: 9, SchoolID: &school, IsLibrarian: true})

	w := get(router, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeUnauthorized, decodeError(t, w).Error.Code)

	w = get(router, "/me", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrorCodeInvalidToken, decodeError(t, w).Error.Code)

	w = get(router, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":9,"username":"librarian"}`, w.Body.String())

	w = get(router, "/me?token=good", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoleGates(t *testing.T) {
	school := int64(3)

	librarian := authRouter(models.Scope{UserID: 1, SchoolID: &school, IsLibrarian: true})
	assert.Equal(t, http.StatusNoContent, get(librarian, "/library", "Bearer good").Code)
	assert.Equal(t, http.StatusForbidden, get(librarian, "/admin", "Bearer good").Code)

	student := authRouter(models.Scope{UserID: 2, SchoolID: &school})
	w := get(student, "/library", "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeForbidden, decodeError(t, w).Error.Code)

	homeless := authRouter(models.Scope{UserID: 3, IsLibrarian: true})
	w = get(homeless, "/library", "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrorCodeNoSchoolAssign, decodeError(t, w).Error.Code)

	admin := authRouter(models.Scope{UserID: 4, IsSuperuser: true})
	assert.Equal(t, http.StatusNoContent, get(admin, "/library", "Bearer good").Code)
	assert.Equal(t, http.StatusNoContent, get(admin, "/admin", "Bearer good").Code)
}
