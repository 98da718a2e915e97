package services

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidVerdict    = errors.New("verdict must be COMPLETED or REJECTED")
	ErrChallengeMissing  = errors.New("referenced challenge missing")
	ErrInvalidRedemption = errors.New("invalid redemption")
	ErrPayoutProcessor   = errors.New("payout processor error")
	ErrExternalService   = errors.New("external service error")
)
