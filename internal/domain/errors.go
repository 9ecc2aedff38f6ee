package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound      = errors.New("account not found")
	ErrInactiveAccount      = errors.New("account is not active")
	ErrCurrencyMismatch     = errors.New("currency does not match account currency")
	ErrInvalidAccountStatus = errors.New("invalid account status")

	// Transaction errors
	ErrSameAccount         = errors.New("source and destination must differ")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidTransition   = errors.New("invalid transaction status transition")
	ErrUnknownEntryKind    = errors.New("unknown ledger entry kind")

	// Store errors
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrLeaseTimeout       = errors.New("timed out waiting for account lease")
)
