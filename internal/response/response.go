package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "vision-gateway/pkg/errors"
)

// Response is the standard API response structure
type Response struct {
	Error  int32  `json:"error"`            // Error code (0 = success)
	Msg    string `json:"msg"`              // Human-readable message
	Detail string `json:"detail,omitempty"` // Additional error details
	Data   any    `json:"data"`             // Response payload
}

// Success returns a success response with data
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Error: 0,
		Msg:   "Success",
		Data:  data,
	})
}

// FromError converts an error to a Response
// If the error is an AppError, it extracts code and message
// Otherwise, it uses CodeUnknown
func FromError(err error) Response {
	if err == nil {
		return Response{
			Error: 0,
			Msg:   "Success",
		}
	}

	return Response{
		Error:  int32(apperrors.GetCode(err)),
		Msg:    apperrors.GetMessage(err),
		Detail: apperrors.GetDetail(err),
		Data:   nil,
	}
}

// ErrorResponse sends an error response from an error
func ErrorResponse(c *gin.Context, err error) {
	c.JSON(StatusFor(apperrors.GetCode(err)), FromError(err))
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code int) int {
	switch code {
	case apperrors.CodeSuccess:
		return http.StatusOK
	case apperrors.CodeAtCapacity:
		return http.StatusTooManyRequests
	case apperrors.CodeRunnerStopped:
		return http.StatusServiceUnavailable
	case apperrors.CodeNotFound, apperrors.CodeJobNotFound,
		apperrors.CodeArtifactNotFound, apperrors.CodeInvalidArtifactName:
		return http.StatusNotFound
	case apperrors.CodeJobNotCompleted:
		return http.StatusConflict
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeInvalidParams:
		return http.StatusBadRequest
	}
	if code >= apperrors.CodeUnknownTask && code < apperrors.CodeJobNotFound {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
