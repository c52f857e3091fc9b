package checks

import (
	"errors"

	"github.com/bissquit/healthboard/internal/domain"
)

// Kind classifies a failed check.
type Kind int

// Failure kinds, from most to least severe.
const (
	KindUnavailable Kind = iota
	KindUnexpectedResult
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindUnexpectedResult:
		return "unexpected_result"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Status maps the failure kind to the service status it reports.
func (k Kind) Status() domain.StatusLevel {
	switch k {
	case KindUnexpectedResult:
		return domain.StatusOrange
	case KindWarning:
		return domain.StatusYellow
	default:
		return domain.StatusRed
	}
}

// CheckError is a classified check failure.
type CheckError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CheckError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CheckError) Unwrap() error {
	return e.Cause
}

// Unavailable reports a critical failure.
func Unavailable(message string, cause error) *CheckError {
	return &CheckError{Kind: KindUnavailable, Message: message, Cause: cause}
}

// UnexpectedResult reports a check that ran but returned an unexpected value.
func UnexpectedResult(message string, cause error) *CheckError {
	return &CheckError{Kind: KindUnexpectedResult, Message: message, Cause: cause}
}

// Warning reports a non-critical degradation.
func Warning(message string) *CheckError {
	return &CheckError{Kind: KindWarning, Message: message}
}

// classify turns any error returned by a backend into a CheckError.
// Unclassified errors count as Unavailable.
func classify(err error) *CheckError {
	var checkErr *CheckError
	if errors.As(err, &checkErr) {
		return checkErr
	}
	return Unavailable("Unknown Error", err)
}
