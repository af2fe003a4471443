package service

import "errors"

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrRichMenuNotFound     = errors.New("rich menu not found")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrRegistrationFailed   = errors.New("registration failed: account name already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidAlias         = errors.New("invalid alias: must be 1-50 characters of a-z, A-Z, 0-9, '-' or '_'")
	ErrAliasTaken           = errors.New("alias already used by another rich menu in this project")
	ErrInvalidMetadata      = errors.New("invalid rich menu metadata")
	ErrNotExportable        = errors.New("rich menu has no publishable areas")
	ErrInternalServer       = errors.New("internal server error")
)
