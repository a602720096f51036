// Package apierr defines the error kinds surfaced to service clients and their HTTP
// status codes. Errors carry a machine-readable kind, a message safe to show to the
// client and optional structured details.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is a machine-readable error code.
type Kind string

// Error kinds.
const (
	InvalidProduct        Kind = "INVALID_PRODUCT"
	InvalidServiceType    Kind = "INVALID_SERVICE_TYPE"
	ServiceMismatch       Kind = "SERVICE_MISMATCH"
	MissingParameters     Kind = "MISSING_PARAMETERS"
	InvalidBBox           Kind = "INVALID_BBOX"
	InvalidDimensions     Kind = "INVALID_DIMENSIONS"
	InvalidParameter      Kind = "INVALID_PARAMETER"
	ServiceNotImplemented Kind = "SERVICE_NOT_IMPLEMENTED"
	ServiceUnavailable    Kind = "SERVICE_UNAVAILABLE"
	FeatureInfoError      Kind = "FEATURE_INFO_ERROR"
	InternalError         Kind = "INTERNAL_ERROR"
)

// HeaderErrorCode carries the error kind on every error response.
const HeaderErrorCode = "X-Error-Code"

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case InvalidProduct, InvalidServiceType, ServiceMismatch, MissingParameters,
		InvalidBBox, InvalidDimensions, InvalidParameter:
		return http.StatusBadRequest
	case ServiceNotImplemented:
		return http.StatusNotFound
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	case FeatureInfoError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsValidation reports whether the kind is raised by request validation.
func (k Kind) IsValidation() bool {
	return k.Status() == http.StatusBadRequest
}

// DefaultMessage returns the client-facing message used when none is given.
func (k Kind) DefaultMessage() string {
	switch k {
	case InvalidProduct:
		return "Unsupported S-100 product type"
	case InvalidServiceType:
		return "Unsupported service type"
	case ServiceMismatch:
		return "SERVICE parameter does not match the requested service type"
	case MissingParameters:
		return "Required parameters are missing"
	case InvalidBBox:
		return "Invalid bounding box format. Expected: minX,minY,maxX,maxY"
	case InvalidDimensions:
		return "Invalid width or height values"
	case InvalidParameter:
		return "Invalid query parameter"
	case ServiceNotImplemented:
		return "The requested operation is not implemented for this service"
	case ServiceUnavailable:
		return "The requested service is temporarily unavailable"
	case FeatureInfoError:
		return "Feature information could not be retrieved"
	default:
		return "An internal server error occurred"
	}
}

// Error is a client-visible error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	// Err is the underlying cause. It is logged, never serialized.
	Err error
}

// New returns an Error of kind with the given message (or the kind's default message).
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kind.DefaultMessage()
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of kind carrying err as its cause.
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

// WithDetails sets a detail entry and returns the error for chaining.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so errors.Is(err, apierr.New(k, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Status returns the HTTP status code for the error's kind.
func (e *Error) Status() int {
	return e.Kind.Status()
}

// From converts any error into an *Error. Errors that are not already an *Error become
// INTERNAL_ERROR with the generic message so internals are not leaked.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(InternalError, err, "")
}

// KindOf returns the kind of err, or INTERNAL_ERROR when err is not an *Error.
func KindOf(err error) Kind {
	return From(err).Kind
}

// Body is the JSON error envelope.
type Body struct {
	Error BodyError `json:"error"`
}

// BodyError is the payload of the error envelope.
type BodyError struct {
	Code    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// MarshalJSON encodes the error as its client-facing envelope.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(Body{Error: BodyError{Code: e.Kind, Message: e.Message, Details: e.Details}})
}

// Write sends err as a JSON error response with the matching status and X-Error-Code header.
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderErrorCode, string(e.Kind))
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(e)
}
