package model

import "errors"

// Error kinds shared by every ledger module. Callers match them with errors.Is;
// modules wrap them with context via fmt.Errorf("...: %w", err).
var (
	ErrUnauthorized              = errors.New("unauthorized")
	ErrZeroAmount                = errors.New("amount must be greater than zero")
	ErrZeroRatio                 = errors.New("ratio must be greater than zero")
	ErrAlreadyExists             = errors.New("already exists")
	ErrNotFound                  = errors.New("not found")
	ErrNotInWhitelist            = errors.New("token is not in whitelist")
	ErrNotStaked                 = errors.New("no active stake")
	ErrAlreadyStaked             = errors.New("already staked")
	ErrInvalidFraction           = errors.New("invalid fraction")
	ErrFeeRatioMustBeLessThanOne = errors.New("fee ratio must be less than one")
	ErrRatioMustBeAtMostOne      = errors.New("ratio must be less than or equal to one")
	ErrLocked                    = errors.New("locked")
	ErrAlreadyUnlocked           = errors.New("already unlocked")
	ErrInvalidContinuation       = errors.New("invalid continuation")
	ErrExceedBurnLimit           = errors.New("exceed burn limit")
	ErrInsufficientRewards       = errors.New("insufficient rewards")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrAlreadyInitialized        = errors.New("config has already been initialized")
	ErrUnsupportedToken          = errors.New("unsupported token")
	ErrInvalidStakeAmount        = errors.New("invalid stake amount")
	ErrInvalidFunds              = errors.New("invalid funds")
	ErrInvalidAddress            = errors.New("invalid address")
	ErrUnknownMessage            = errors.New("unknown message")
	ErrSameAddress               = errors.New("address is unchanged")
	ErrCannotSetOwnAccount       = errors.New("cannot set to own account")
	ErrExpired                   = errors.New("allowance is expired")
	ErrCapExceeded               = errors.New("minting cannot exceed the cap")
	ErrInvalidZeroLimit          = errors.New("limit must be greater than zero")
	ErrMinimumReceive            = errors.New("minimum receive amount not met")
)
