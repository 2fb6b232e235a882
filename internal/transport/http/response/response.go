package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeMessageEmpty       = 40001
	CodeEmailExists        = 40002
	CodeNotPDF             = 40003
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeInvalidAPIKey      = 40102
	CodeForbidden          = 40300
	CodeRegistrationClosed = 40301
	CodeNotFound           = 40400
	CodeSessionNotFound    = 40401
	CodeDocumentNotFound   = 40402
	CodeTenantNotFound     = 40403
	CodeDocumentBusy       = 40900
	CodeFileTooLarge       = 41300
	CodePageQuotaExceeded  = 41301
	CodeRateLimited        = 42900
	CodeInternalServer     = 50000
	CodeUnavailable        = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Accepted is OK for work that continues asynchronously.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
