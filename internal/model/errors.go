package model

import "errors"

var (
	ErrUnknownVenue        = errors.New("unknown venue")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderRejected       = errors.New("order rejected")
	ErrPriceRequired       = errors.New("price is required for limit orders")
)
