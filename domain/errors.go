package domain

import "errors"

var (
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("Internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("Your requested Item is not found")
	// ErrConflict will throw if the current action already exists
	ErrConflict = errors.New("Your Item already exist")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("Given Param is not valid")

	// ErrWrongLifecyclePhase will throw if an operation is invoked while the
	// auction is in a lifecycle phase that does not permit it
	ErrWrongLifecyclePhase = errors.New("operation not allowed in current lifecycle phase")
	// ErrUnauthorized will throw if the caller lacks the role the operation
	// requires, e.g. a non-seller calling start or end
	ErrUnauthorized = errors.New("caller is not allowed to perform this operation")
	// ErrTimingViolation will throw on bid after the deadline or end before it
	ErrTimingViolation = errors.New("operation violates auction deadline")
	// ErrInsufficientBid will throw if the caller's cumulative escrow total
	// does not exceed the current top bid or is below the reserve price
	ErrInsufficientBid = errors.New("bid amount is insufficient")
	// ErrCustodyTransferFailed will throw if the fungible or non-fungible
	// custody service declined a transfer, typically for missing authorization
	ErrCustodyTransferFailed = errors.New("custody service declined the transfer")
	// ErrInsufficientEscrowBalance signals a release or debit that would push
	// an escrow entry negative. It is unreachable in correct operation and
	// indicates a ledger bug, so callers must treat it as fatal
	ErrInsufficientEscrowBalance = errors.New("escrow balance lower than requested amount")

	// request error
	ErrInvalidAddress = errors.New("Invalid address")

	ErrInvalidAmountFormat = errors.New("invalid amount format")
)
