package domain

import "errors"

// Sentinel errors returned by storage adapters. Services translate them into
// apperror values before they reach a caller.
var (
	ErrWalletNotFound     = errors.New("wallet not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrProductNotFound    = errors.New("product not found")
	ErrOutOfStock         = errors.New("out of stock")
	ErrPaymentNotFound    = errors.New("payment request not found")
	ErrAlreadyProcessed   = errors.New("payment request already processed")
	ErrInvalidCredential  = errors.New("credential requires account and secret")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
	ErrUnknownSetting     = errors.New("setting is not editable")
	ErrEmptyTransactionID = errors.New("transaction reference is required")
)
