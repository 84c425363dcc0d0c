package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidInstrument Kind = "invalid_instrument"
	KindAuthentication    Kind = "authentication"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

const (
	CodeBadRequest     = "BAD_REQUEST_ERROR"
	CodeInvalidVPA     = "INVALID_VPA"
	CodeInvalidCard    = "INVALID_CARD"
	CodeAuthentication = "AUTHENTICATION_ERROR"
	CodeNotFound       = "NOT_FOUND_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// Error is the caller-facing error. Code and Description are safe to return;
// Err is kept for logs only.
type Error struct {
	Kind        Kind
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(description string) *Error {
	return &Error{Kind: KindValidation, Code: CodeBadRequest, Description: description}
}

func InvalidVPA() *Error {
	return &Error{Kind: KindInvalidInstrument, Code: CodeInvalidVPA, Description: "Invalid VPA format"}
}

func InvalidCard() *Error {
	return &Error{Kind: KindInvalidInstrument, Code: CodeInvalidCard, Description: "Card validation failed"}
}

func Authentication() *Error {
	return &Error{Kind: KindAuthentication, Code: CodeAuthentication, Description: "Invalid API credentials"}
}

func NotFound(description string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Description: description}
}

// Internal hides err behind a generic description.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Description: "Internal server error", Err: err}
}

// From returns the *Error in err's chain, or wraps err as Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func HTTPStatus(err error) int {
	switch From(err).Kind {
	case KindValidation, KindInvalidInstrument:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type Body struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type Envelope struct {
	Error Body `json:"error"`
}

func ToEnvelope(err error) Envelope {
	e := From(err)
	return Envelope{Error: Body{Code: e.Code, Description: e.Description}}
}
