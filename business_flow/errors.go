// Package businessflow contains the core business logic and use cases for message dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Recipient resolution errors
	ErrNoRecipient       = errors.New("no recipient could be resolved")
	ErrInvalidRecipient  = errors.New("recipient is not a valid phone number")
	ErrRecipientRequired = errors.New("recipient is required")

	// Template errors
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateDisabled = errors.New("template is disabled")
	ErrContentRequired  = errors.New("message content is required")

	// Account errors
	ErrAccountNotFound   = errors.New("no usable WhatsApp account found")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrAccountIncomplete = errors.New("account is missing provider configuration")

	// Message lifecycle errors
	ErrMessageNotFound     = errors.New("message not found")
	ErrMessageNotRetryable = errors.New("only failed messages can be retried")

	// Rule errors
	ErrRuleNotFound      = errors.New("notification rule not found")
	ErrRuleDisabled      = errors.New("notification rule is disabled")
	ErrConditionRejected = errors.New("notification condition evaluated false")

	// Bulk errors
	ErrBulkNotFound     = errors.New("bulk message not found")
	ErrBulkNotStartable = errors.New("bulk message cannot be started in its current status")
	ErrBulkEmptyList    = errors.New("recipient list has no entries")

	// Recipient list errors
	ErrRecipientListNotFound = errors.New("recipient list not found")

	ErrCacheNotAvailable = errors.New("cache not available")
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

// AsBusinessError unwraps err into a *BusinessError when one is in the chain
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func IsNoRecipient(err error) bool {
	return errors.Is(err, ErrNoRecipient)
}

func IsInvalidRecipient(err error) bool {
	return errors.Is(err, ErrInvalidRecipient)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsTemplateDisabled(err error) bool {
	return errors.Is(err, ErrTemplateDisabled)
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsMessageNotRetryable(err error) bool {
	return errors.Is(err, ErrMessageNotRetryable)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsConditionRejected(err error) bool {
	return errors.Is(err, ErrConditionRejected)
}

func IsBulkNotFound(err error) bool {
	return errors.Is(err, ErrBulkNotFound)
}

func IsBulkNotStartable(err error) bool {
	return errors.Is(err, ErrBulkNotStartable)
}

func IsRecipientListNotFound(err error) bool {
	return errors.Is(err, ErrRecipientListNotFound)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
