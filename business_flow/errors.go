// Package businessflow contains the core business logic for signup, payment activation and premium entitlement
package businessflow

import (
	"errors"
	"fmt"

	"github.com/anchorchat/anchor/app/services"
)

// Business flow error constants
var (
	// Account-related errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountBanned       = errors.New("account is banned")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrInvalidAvatar       = errors.New("invalid avatar")
	ErrCaptchaRequired     = errors.New("captcha is required")
	ErrCaptchaInvalid      = errors.New("captcha verification failed")
	ErrLastAdminProtected  = errors.New("cannot remove the last admin")
	ErrAdminAccessRequired = errors.New("admin access required")

	// Payment initiation errors
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidAmount         = fmt.Errorf("%w: amount must be positive and match the plan price", ErrInvalidInput)
	ErrInvalidContactHandle  = fmt.Errorf("%w: phone number must be a Kenyan mobile number", ErrInvalidInput)
	ErrInvalidPaymentPurpose = fmt.Errorf("%w: unknown payment purpose", ErrInvalidInput)
	ErrAlreadyActivated      = fmt.Errorf("%w: account is already active", ErrInvalidInput)
	ErrGatewayUnavailable    = services.ErrGatewayUnavailable

	// Callback resolution errors. None of these ever reach the provider.
	ErrUnknownCorrelation = errors.New("unknown correlation token")
	ErrAlreadyResolved    = errors.New("payment attempt already resolved")
	ErrAccountMissing     = errors.New("payment attempt references a missing account")
	ErrInvalidCallback    = errors.New("invalid callback payload")
	ErrCallbackRejected   = errors.New("callback failed provider verification")
	ErrCallbackLockBusy   = errors.New("callback for this token is being processed")
	ErrInterimCallback    = errors.New("interim callback carries no final outcome")

	ErrPaymentAttemptNotFound = errors.New("payment attempt not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsAccountBanned(err error) bool {
	return errors.Is(err, ErrAccountBanned)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsCaptchaError(err error) bool {
	return errors.Is(err, ErrCaptchaRequired) || errors.Is(err, ErrCaptchaInvalid)
}

func IsLastAdminProtected(err error) bool {
	return errors.Is(err, ErrLastAdminProtected)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidAvatar)
}

func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable)
}

func IsUnknownCorrelation(err error) bool {
	return errors.Is(err, ErrUnknownCorrelation)
}

func IsAlreadyResolved(err error) bool {
	return errors.Is(err, ErrAlreadyResolved)
}

func IsAccountMissing(err error) bool {
	return errors.Is(err, ErrAccountMissing)
}

func IsInvalidCallback(err error) bool {
	return errors.Is(err, ErrInvalidCallback)
}

func IsCallbackRejected(err error) bool {
	return errors.Is(err, ErrCallbackRejected)
}

func IsInterimCallback(err error) bool {
	return errors.Is(err, ErrInterimCallback)
}

func IsCallbackLockBusy(err error) bool {
	return errors.Is(err, ErrCallbackLockBusy)
}

func IsPaymentAttemptNotFound(err error) bool {
	return errors.Is(err, ErrPaymentAttemptNotFound)
}

func IsAdminAccessRequired(err error) bool {
	return errors.Is(err, ErrAdminAccessRequired)
}
