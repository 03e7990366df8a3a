package repository

import "errors"

var (
	// ErrVerificationNotPending is returned when a review targets a
	// verification that was already approved or rejected
	ErrVerificationNotPending = errors.New("verification is not pending")

	// ErrInviteNotClaimable is returned when an invite code does not
	// exist or was already used
	ErrInviteNotClaimable = errors.New("invite code is invalid or already used")

	// ErrInsufficientBalance is returned when a spend would take a
	// balance below zero
	ErrInsufficientBalance = errors.New("insufficient balance")
)
