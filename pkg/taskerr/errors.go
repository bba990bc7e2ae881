package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies a task failure
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindApprovalDenied Kind = "approval_denied"
	KindExecution      Kind = "execution"
)

// Sentinels for errors.Is checks against a Kind
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrApprovalDenied = &Error{Kind: KindApprovalDenied}
	ErrExecution      = &Error{Kind: KindExecution}
)

// Error is a classified task failure
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Kind) + " error"
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Configuration reports an unknown tool or model
func Configuration(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation reports parameters that do not satisfy a tool's declared schema
func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Denied reports a rejected approval
func Denied(op, format string, args ...interface{}) error {
	return &Error{Kind: KindApprovalDenied, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Execution wraps a collaborator failure
func Execution(op string, err error) error {
	return &Error{Kind: KindExecution, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindExecution for unclassified errors
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindExecution
}
