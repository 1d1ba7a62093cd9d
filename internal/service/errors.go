package service

import (
	"errors"

	"vending-kernel/internal/core/domain"
	"vending-kernel/pkg/apperror"
)

// translate maps storage sentinels onto AppErrors. Errors that already are
// AppErrors pass through; anything else becomes SYS_001.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrOutOfStock):
		return apperror.ErrOutOfStock()
	case errors.Is(err, domain.ErrProductNotFound):
		return apperror.ErrNotFound("product")
	case errors.Is(err, domain.ErrWalletNotFound):
		return apperror.ErrNotFound("wallet")
	case errors.Is(err, domain.ErrPaymentNotFound):
		return apperror.ErrNotFound("payment request")
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return apperror.ErrAlreadyProcessed()
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return apperror.ErrInvalidAmount()
	case errors.Is(err, domain.ErrEmptyTransactionID),
		errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrUnknownSetting):
		return apperror.InvalidInput(err.Error())
	default:
		return apperror.InternalError(err)
	}
}
