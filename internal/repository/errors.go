package repository

import "errors"

var (
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrPageQuotaExceeded     = errors.New("page quota exceeded")
	ErrDocumentBusy          = errors.New("document is not in a terminal state")
	ErrSessionTenantMismatch = errors.New("session belongs to another tenant")
)
