package middleware

import (
	"net/http"

	"github.com/emicklei/go-restful/v3"
)

type ErrorResponse struct {
	Error   string   `json:"error" description:"Error message"`
	Code    int      `json:"code" description:"HTTP status code"`
	Details []string `json:"details,omitempty" description:"Additional error details"`
}

// HandleError writes err as a JSON error envelope.
func HandleError(resp *restful.Response, err error, status int, details ...string) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	_ = resp.WriteHeaderAndEntity(status, ErrorResponse{
		Error:   err.Error(),
		Code:    status,
		Details: details,
	})
}
