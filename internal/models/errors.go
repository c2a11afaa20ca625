package models

import "errors"

// Authorization.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotJobMaster  = errors.New("caller is not the job master")
	ErrNotJobWorker  = errors.New("caller is not the job worker")
	ErrNotAuthorized = errors.New("caller is not an authorized caller")
)

// State machine.
var (
	ErrInvalidJobState      = errors.New("invalid job state")
	ErrCannotCancelJob      = errors.New("job cannot be cancelled")
	ErrFundsAlreadyReleased = errors.New("funds already released")
	ErrJobNotFound          = errors.New("job not found")
)

// Input validation.
var (
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidWorker     = errors.New("invalid worker")
	ErrCannotHireSelf    = errors.New("cannot hire self")
	ErrInvalidDeadline   = errors.New("deadline must be in the future")
	ErrInvalidOutputHash = errors.New("output hash must be non-zero")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAddress    = errors.New("invalid address")
)

// Registration and activity.
var (
	ErrMasterNotRegistered = errors.New("master is not registered")
	ErrWorkerNotRegistered = errors.New("worker is not registered")
	ErrNotActive           = errors.New("identity is not active")
	ErrNotRegistered       = errors.New("identity is not registered")
	ErrAlreadyRegistered   = errors.New("identity already registered")
)

// Economic, temporal and transfer failures.
var (
	ErrInsufficientStake   = errors.New("insufficient stake")
	ErrMustMaintainMinimum = errors.New("stake must stay above the minimum")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDeadlinePassed      = errors.New("deadline passed")
	ErrTransferFailed      = errors.New("transfer failed")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "Unauthorized"},
	{ErrNotJobMaster, "NotJobMaster"},
	{ErrNotJobWorker, "NotJobWorker"},
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrInvalidJobState, "InvalidJobState"},
	{ErrCannotCancelJob, "CannotCancelJob"},
	{ErrFundsAlreadyReleased, "FundsAlreadyReleased"},
	{ErrJobNotFound, "JobNotFound"},
	{ErrInvalidPrice, "InvalidPrice"},
	{ErrInvalidWorker, "InvalidWorker"},
	{ErrCannotHireSelf, "CannotHireSelf"},
	{ErrInvalidDeadline, "InvalidDeadline"},
	{ErrInvalidOutputHash, "InvalidOutputHash"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidAddress, "InvalidAddress"},
	{ErrMasterNotRegistered, "MasterNotRegistered"},
	{ErrWorkerNotRegistered, "WorkerNotRegistered"},
	{ErrNotActive, "NotActive"},
	{ErrNotRegistered, "NotRegistered"},
	{ErrAlreadyRegistered, "AlreadyRegistered"},
	{ErrInsufficientStake, "InsufficientStake"},
	{ErrMustMaintainMinimum, "MustMaintainMinimum"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrDeadlinePassed, "DeadlinePassed"},
	{ErrTransferFailed, "TransferFailed"},
}

// ErrorCode returns the machine-checkable reason for a core failure, or "" for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
