package contract

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures at the request boundary
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindInvalidContractType
	KindTemplateMissing
	KindAssembly
)

// String returns the wire name of the kind
func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "INVALID_REQUEST"
	case KindInvalidContractType:
		return "INVALID_CONTRACT_TYPE"
	case KindTemplateMissing:
		return "TEMPLATE_MISSING"
	case KindAssembly:
		return "ASSEMBLY_ERROR"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus maps the kind to the status returned by the delivery layer.
// Caller mistakes are 400; configuration and assembly problems are 500.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest, KindInvalidContractType:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed failure surfaced by every core operation
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error message, or "" when there is none
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// KindOf extracts the Kind of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// NewInvalidRequest reports a malformed envelope
func NewInvalidRequest(message string, err error) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message, Err: err}
}

// NewInvalidContractType reports a contract type outside the permitted set
func NewInvalidContractType(got string, permitted []Type) *Error {
	names := make([]string, len(permitted))
	for i, t := range permitted {
		names[i] = string(t)
	}
	return &Error{
		Kind:    KindInvalidContractType,
		Message: fmt.Sprintf("invalid contract_type %q", got),
		Detail:  map[string]any{"permitted": names},
	}
}

// NewTemplateMissing reports a registry entry whose resource is absent
func NewTemplateMissing(t Type, location string, err error) *Error {
	return &Error{
		Kind:    KindTemplateMissing,
		Message: fmt.Sprintf("template for %s not found", t),
		Detail:  map[string]any{"template": location},
		Err:     err,
	}
}

// NewAssemblyError reports a failure while opening, filling or writing a document
func NewAssemblyError(op string, err error) *Error {
	return &Error{Kind: KindAssembly, Message: op, Err: err}
}
