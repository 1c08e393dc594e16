package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

// StatusFor maps an error code to its HTTP status.
func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeMalformedCommand, domainagg.CodeUnsupportedEventType:
		return http.StatusBadRequest
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeInvalidStateTransition, domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePublishFailure:
		return http.StatusBadGateway
	case domainagg.CodeOperationCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondDomainError writes err with the status its code maps to. result,
// when non-nil, is attached so the caller can see what was persisted.
func RespondDomainError(c *gin.Context, err error, result any) {
	var aggErr *domainagg.Error
	if !errors.As(err, &aggErr) {
		RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), err)
		return
	}
	code := aggErr.Code
	if code == "" {
		code = domainagg.CodeInternal
	}
	msg := aggErr.Message
	if msg == "" {
		msg = err.Error()
	}
	c.JSON(StatusFor(code), ErrorEnvelope{
		Error: APIError{
			Message:   msg,
			Code:      string(code),
			CommandID: aggErr.CommandID,
			ImageID:   aggErr.ImageID,
		},
		Result: result,
	})
}
