package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	CommandID string `json:"command_id,omitempty"`
	ImageID   string `json:"image_id,omitempty"`
}

// ErrorEnvelope is the body of every error response. Result is set when the
// command was persisted but a later step failed.
type ErrorEnvelope struct {
	Error  APIError `json:"error"`
	Result any      `json:"result,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
