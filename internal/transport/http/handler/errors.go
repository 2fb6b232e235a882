package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tenantrag/internal/app"
	"tenantrag/internal/transport/http/middleware"
	"tenantrag/internal/transport/http/response"
)

// respondError maps service errors to status and business code. Anything
// unrecognised is a 500 with the fallback message so internals never leak.
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, app.ErrNotPDF):
		response.Error(c, http.StatusBadRequest, response.CodeNotPDF, app.ErrNotPDF.Error())
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageTooLong):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusConflict, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential), errors.Is(err, app.ErrAccountDisabled):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrInvalidAPIKey):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidAPIKey, err.Error())
	case errors.Is(err, app.ErrRegistrationClosed):
		response.Error(c, http.StatusForbidden, response.CodeRegistrationClosed, err.Error())
	case errors.Is(err, app.ErrTenantNotFound):
		response.Error(c, http.StatusNotFound, response.CodeTenantNotFound, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentBusy):
		response.Error(c, http.StatusConflict, response.CodeDocumentBusy, "document is still being processed")
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrPageQuotaExceeded):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePageQuotaExceeded, err.Error())
	case errors.Is(err, app.ErrMessagePublish), errors.Is(err, app.ErrEnqueue), errors.Is(err, app.ErrBlobWrite):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, fallback)
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func principalOrAbort(c *gin.Context) (app.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return p, ok
}
