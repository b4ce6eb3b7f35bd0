// Package businessflow contains the game rules: sessions, draws, finalize, the daily ledger and stats
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Owner errors
	ErrOwnerKeyRequired = errors.New("owner key is required")
	ErrForbidden        = errors.New("session belongs to another owner")

	// Session lifecycle errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFinalized   = errors.New("session is already finalized")
	ErrDrawLimitReached   = errors.New("draw limit reached")
	ErrInvalidPickIndex   = errors.New("pick index must be between 0 and 4")
	ErrNeed5Cards         = errors.New("five cards must be drawn before finalize")
	ErrInvalidCardIndex   = errors.New("no card drawn at pick index")
	ErrAlreadyPlayedToday = errors.New("official card of the day already chosen")
	ErrConflict           = errors.New("concurrent update conflict")

	// Selection errors
	ErrEmptyCandidateSet = errors.New("candidate set is empty")
)

// BusinessError carries a stable error code alongside the wrapped cause
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

func IsOwnerKeyRequired(err error) bool {
	return errors.Is(err, ErrOwnerKeyRequired)
}

func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionFinalized(err error) bool {
	return errors.Is(err, ErrSessionFinalized)
}

func IsDrawLimitReached(err error) bool {
	return errors.Is(err, ErrDrawLimitReached)
}

func IsInvalidPickIndex(err error) bool {
	return errors.Is(err, ErrInvalidPickIndex)
}

func IsNeed5Cards(err error) bool {
	return errors.Is(err, ErrNeed5Cards)
}

func IsInvalidCardIndex(err error) bool {
	return errors.Is(err, ErrInvalidCardIndex)
}

func IsAlreadyPlayedToday(err error) bool {
	return errors.Is(err, ErrAlreadyPlayedToday)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// isDomainError reports whether err is one of the sentinels a caller is expected to handle
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrOwnerKeyRequired, ErrForbidden, ErrSessionNotFound, ErrSessionFinalized,
		ErrDrawLimitReached, ErrInvalidPickIndex, ErrNeed5Cards, ErrInvalidCardIndex,
		ErrAlreadyPlayedToday, ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
