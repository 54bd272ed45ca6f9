// Package valeterr defines Valet's error taxonomy: a small, closed set of
// machine-readable failure kinds that every layer (path resolution, command
// execution, the request gate, the JSON-RPC envelope) maps its failures onto,
// so the HTTP and audit layers never have to pattern-match on error strings.
package valeterr

import "net/http"

// Kind is one of the symbols from the taxonomy.
type Kind string

const (
	Unauthorized     Kind = "Unauthorized"
	OriginDenied     Kind = "OriginDenied"
	RequestTooLarge  Kind = "RequestTooLarge"
	ResponseTooLarge Kind = "ResponseTooLarge"
	RateLimited      Kind = "RateLimited"
	ToolNotFound     Kind = "ToolNotFound"
	InvalidParams    Kind = "InvalidParams"
	PathOutsideRoot  Kind = "PathOutsideRoot"
	NotFound         Kind = "NotFound"
	ExecDenied       Kind = "ExecDenied"
	ExecTimeout      Kind = "ExecTimeout"
	Io               Kind = "Io"
	Parse            Kind = "Parse"
)

// httpStatus maps each kind to the HTTP status spec.md §7 assigns it.
var httpStatus = map[Kind]int{
	Unauthorized:     http.StatusUnauthorized,
	OriginDenied:     http.StatusForbidden,
	RequestTooLarge:  http.StatusRequestEntityTooLarge,
	ResponseTooLarge: http.StatusInternalServerError,
	RateLimited:      http.StatusTooManyRequests,
	ToolNotFound:     http.StatusNotFound,
	InvalidParams:    http.StatusBadRequest,
	PathOutsideRoot:  http.StatusForbidden,
	NotFound:         http.StatusNotFound,
	ExecDenied:       http.StatusForbidden,
	ExecTimeout:      http.StatusGatewayTimeout,
	Io:               http.StatusInternalServerError,
	Parse:            http.StatusBadRequest,
}

// HTTPStatus returns the status code a gate-level failure of this kind maps to.
func (k Kind) HTTPStatus() int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a Valet failure tagged with a taxonomy Kind. Message is safe to
// surface to callers — it must never embed secret material (token, file
// contents, environment values), per spec.md §7.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New constructs a taxonomy error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// As extracts a *Error from err, returning (nil, false) if err isn't one.
func As(err error) (*Error, bool) {
	ve, ok := err.(*Error)
	return ve, ok
}
