package app

import (
	"errors"

	"tenantrag/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrMessageEmpty       = errors.New("message content is empty")
	ErrMessageTooLong     = errors.New("message content is too long")
	ErrMessagePublish     = errors.New("message publish failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFileTooLarge       = errors.New("file exceeds the upload size limit")
	ErrNotPDF             = errors.New("file is not a readable pdf")
	ErrBlobWrite          = errors.New("document storage failed")
	ErrEnqueue            = errors.New("document enqueue failed")
	ErrNoExtractableText  = errors.New("document has no extractable text")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredential  = errors.New("invalid email or password")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrRegistrationClosed = errors.New("self registration is disabled")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Aliases so callers above the service layer need not import repository.
	ErrTenantNotFound        = repository.ErrTenantNotFound
	ErrPageQuotaExceeded     = repository.ErrPageQuotaExceeded
	ErrDocumentBusy          = repository.ErrDocumentBusy
	ErrSessionTenantMismatch = repository.ErrSessionTenantMismatch
)
