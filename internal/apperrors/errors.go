// Package apperrors defines the error taxonomy shared by the service core.
// Every failure that can cross the HTTP boundary is represented as an *Error
// with a machine-readable code; everything else surfaces as INTERNAL_ERROR.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeIdentitySpoof    = "IDENTITY_SPOOF"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeSessionInvalid   = "SESSION_INVALID"
	CodeAccountInactive  = "ACCOUNT_INACTIVE"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeSubNotFound      = "SUBSCRIPTION_NOT_FOUND"
	CodeUsageLimit       = "USAGE_LIMIT_EXCEEDED"
	CodeWebhookSignature = "WEBHOOK_SIGNATURE_INVALID"
	CodeOwnerResolution  = "OWNER_RESOLUTION_FAILED"
	CodePaymentFailed    = "PAYMENT_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

type Error struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Wrap attaches an underlying cause without changing the surfaced code.
func (e *Error) Wrap(err error) *Error {
	return &Error{Code: e.Code, Status: e.Status, Message: e.Message, Details: e.Details, err: err}
}

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: message}
}

// CredentialInvalid covers every identity-provider rejection with a single
// kind so callers cannot distinguish expired from malformed credentials.
func CredentialInvalid(err error) *Error {
	return &Error{Code: CodeAuthFailed, Status: http.StatusUnauthorized, Message: "authentication failed", err: err}
}

func IdentitySpoofSuspected(claimedSub, verifiedSub string) *Error {
	return &Error{
		Code:    CodeIdentitySpoof,
		Status:  http.StatusUnauthorized,
		Message: "identity claims do not match verified credential",
		err:     fmt.Errorf("claimed sub %q, verified sub %q", claimedSub, verifiedSub),
	}
}

func SessionExpired() *Error {
	return &Error{Code: CodeSessionExpired, Status: http.StatusUnauthorized, Message: "session expired"}
}

func SessionInvalid(err error) *Error {
	return &Error{Code: CodeSessionInvalid, Status: http.StatusUnauthorized, Message: "invalid session token", err: err}
}

func AccountInactive() *Error {
	return &Error{Code: CodeAccountInactive, Status: http.StatusUnauthorized, Message: "account is deactivated"}
}

func UserNotFound() *Error {
	return &Error{Code: CodeUserNotFound, Status: http.StatusNotFound, Message: "user not found"}
}

func SubscriptionNotFound() *Error {
	return &Error{Code: CodeSubNotFound, Status: http.StatusNotFound, Message: "no active subscription found"}
}

func UsageLimitExceeded(used, limit int, upgradeURL string) *Error {
	return &Error{
		Code:    CodeUsageLimit,
		Status:  http.StatusForbidden,
		Message: "monthly question limit reached",
		Details: map[string]any{
			"questionsUsed":  used,
			"questionsLimit": limit,
			"upgradeUrl":     upgradeURL,
		},
	}
}

func WebhookSignatureInvalid(err error) *Error {
	return &Error{Code: CodeWebhookSignature, Status: http.StatusBadRequest, Message: "webhook signature verification failed", err: err}
}

func OwnerResolutionFailed(customerID string, err error) *Error {
	return &Error{
		Code:    CodeOwnerResolution,
		Status:  http.StatusOK,
		Message: fmt.Sprintf("no local owner for billing customer %s", customerID),
		err:     err,
	}
}

func PaymentFailed(err error) *Error {
	return &Error{Code: CodePaymentFailed, Status: http.StatusInternalServerError, Message: "payment operation failed", err: err}
}

func RateLimited() *Error {
	return &Error{Code: CodeRateLimited, Status: http.StatusTooManyRequests, Message: "too many requests"}
}

// Upstream marks a failure of the proxied external call itself, after the
// request was already admitted and charged.
func Upstream(err error) *Error {
	return &Error{Code: CodeUpstream, Status: http.StatusBadGateway, Message: "upstream call failed", err: err}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "internal server error", err: err}
}

// From extracts the taxonomy error from err, defaulting to INTERNAL_ERROR
// so provider-internal messages never leak to callers.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
