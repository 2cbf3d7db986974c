package domain

import "errors"

// Error taxonomy shared by the coordinator, stores and transports.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", Err...).
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrTransferFailure    = errors.New("transfer failed")
	ErrPersistenceFailure = errors.New("persistence failed")
)
