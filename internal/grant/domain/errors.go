package domain

import "fmt"

// Protocol error codes surfaced to OAuth2 clients. A validation failure
// keeps the code it was raised with; it is never downgraded on the way out.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidScope         = "invalid_scope"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeServerError          = "server_error"
)

// Error is an OAuth2 protocol error carried as a value through the grant
// call chain and rendered to the wire only at the server boundary.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func InvalidRequest(description string) *Error {
	return NewError(CodeInvalidRequest, description)
}

func InvalidScope(description string) *Error {
	return NewError(CodeInvalidScope, description)
}

func InvalidClient(description string) *Error {
	return NewError(CodeInvalidClient, description)
}

func InvalidGrant(description string) *Error {
	return NewError(CodeInvalidGrant, description)
}

func UnauthorizedClient(description string) *Error {
	return NewError(CodeUnauthorizedClient, description)
}

func UnsupportedGrantType(grantType string) *Error {
	return NewError(CodeUnsupportedGrantType, fmt.Sprintf("grant type %q is not supported", grantType))
}

func ServerError(description string) *Error {
	return NewError(CodeServerError, description)
}

// AsProtocolError returns err as a protocol error, wrapping anything else
// as server_error so internal detail never leaks to the client.
func AsProtocolError(err error) *Error {
	if err == nil {
		return nil
	}
	if perr, ok := err.(*Error); ok {
		return perr
	}
	return ServerError("internal error")
}
