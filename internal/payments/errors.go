package payments

import "errors"

var (
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentAlreadyConfirmed = errors.New("payment already confirmed")
	ErrPaymentConsumed         = errors.New("payment already consumed")
	ErrReconciliationNotFound  = errors.New("reconciliation record not found")
)
