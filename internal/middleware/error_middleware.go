package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoollib/library/internal/app/models/dto"
	"github.com/schoollib/library/internal/pkg/apperrors"
	"github.com/schoollib/library/internal/pkg/logger"
)

// authStatus maps the authentication errors, which sit outside the generic kinds.
var authStatus = map[error]struct {
	status int
	code   dto.ErrorCode
}{
	apperrors.ErrInvalidCredentials: {http.StatusUnauthorized, dto.ErrorCodeInvalidCredentials},
	apperrors.ErrTokenExpired:       {http.StatusUnauthorized, dto.ErrorCodeExpiredToken},
	apperrors.ErrTokenInvalid:       {http.StatusUnauthorized, dto.ErrorCodeInvalidToken},
	apperrors.ErrAccountDisabled:    {http.StatusForbidden, dto.ErrorCodeAccountDisabled},
}

// errorDetailFor converts err into the status code and payload sent to the client.
func errorDetailFor(err error) (int, *dto.ErrorDetail) {
	var custom *apperrors.CustomError
	hasCustom := errors.As(err, &custom)

	for target, mapping := range authStatus {
		if errors.Is(err, target) {
			return mapping.status, dto.NewErrorDetail(mapping.code, err.Error())
		}
	}

	var status int
	var code dto.ErrorCode
	switch apperrors.KindOf(err) {
	case apperrors.ErrResourceNotFound:
		status, code = http.StatusNotFound, dto.ErrorCodeResourceNotFound
	case apperrors.ErrConflict:
		status, code = http.StatusConflict, dto.ErrorCodeConflict
	case apperrors.ErrValidationFailed:
		status, code = http.StatusBadRequest, dto.ErrorCodeValidationFailed
		if errors.Is(err, apperrors.ErrImportFormat) {
			code = dto.ErrorCodeImportFormat
		}
	case apperrors.ErrPermissionDenied:
		status, code = http.StatusForbidden, dto.ErrorCodeForbidden
		if errors.Is(err, apperrors.ErrNoSchoolAssigned) {
			code = dto.ErrorCodeNoSchoolAssign
		}
	default:
		return http.StatusInternalServerError, dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
	}

	detail := dto.NewErrorDetail(code, err.Error())
	if hasCustom && custom.Details != nil {
		detail = detail.WithDetails(custom.Details)
	}
	return status, detail
}

// HandleAPIError writes the error response for err. Errors that are not one
// of the application's known kinds are logged and reported as 500.
func HandleAPIError(c *gin.Context, err error) {
	status, detail := errorDetailFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("requestId", c.GetString(RequestIDKey)).
			Str("path", c.Request.URL.Path).
			Msg("Unhandled error")
	}
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(detail))
}
