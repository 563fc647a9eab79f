// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "subscription-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	// Abort before writing so later handlers in the chain never run
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		response.Error = err.Error()
	}

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// FromError picks the status code from the error kind.
// Integrity and unknown failures never leak their cause to the client.
func FromError(c *gin.Context, message string, err error) {
	code := StatusFor(err)

	switch xerrors.KindOf(err) {
	case xerrors.KindConflict:
		if id, ok := xerrors.ConflictingID(err); ok {
			Error(c, code, message, err, gin.H{"subscription_id": id})
			return
		}
	case xerrors.KindIntegrity, xerrors.KindUnknown:
		Error(c, code, message, xerrors.ErrInternal)
		return
	case xerrors.KindTransient:
		Error(c, code, message, xerrors.ErrTransient)
		return
	}

	Error(c, code, message, err)
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch xerrors.KindOf(err) {
	case xerrors.KindNotFound:
		return http.StatusNotFound
	case xerrors.KindConflict:
		return http.StatusConflict
	case xerrors.KindInvalidRequest:
		return http.StatusBadRequest
	case xerrors.KindUnauthorized:
		return http.StatusUnauthorized
	case xerrors.KindRateLimited:
		return http.StatusTooManyRequests
	case xerrors.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NoContent writes an empty 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}
