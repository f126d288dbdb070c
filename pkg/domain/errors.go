package domain

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// Code is a stable error code of the form E-FEISHU-NNNN. The first digit
// selects the Kind.
type Code string

const (
	CodeTokenFetchFailed   Code = "E-FEISHU-1001"
	CodeTokenRefreshFailed Code = "E-FEISHU-1002"

	CodeConnectFailed      Code = "E-FEISHU-2001"
	CodeDisconnected       Code = "E-FEISHU-2002"
	CodeReconnectExhausted Code = "E-FEISHU-2003"

	CodeSendFailed   Code = "E-FEISHU-3001"
	CodeDecodeFailed Code = "E-FEISHU-3002"

	CodeUnauthorized     Code = "E-FEISHU-4001"
	CodeWebhookSignature Code = "E-FEISHU-4002"
	CodeBotInfoFailed    Code = "E-FEISHU-4501"

	CodeCapabilityStart    Code = "E-FEISHU-5001"
	CodeCapabilityNotFound Code = "E-FEISHU-5002"

	CodeInvalidConfig Code = "E-FEISHU-6001"
)

// Kind groups codes by the failure domain they belong to.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindConnection    Kind = "connection"
	KindMessage       Kind = "message"
	KindAuthorization Kind = "authorization"
	KindCapability    Kind = "capability"
	KindConfig        Kind = "config"
	KindUnknown       Kind = "unknown"
)

var codeText = map[Code]string{
	CodeTokenFetchFailed:   "failed to obtain tenant_access_token",
	CodeTokenRefreshFailed: "token expired and refresh failed",
	CodeConnectFailed:      "event connection failed",
	CodeDisconnected:       "event connection lost",
	CodeReconnectExhausted: "exceeded max reconnect attempts",
	CodeSendFailed:         "message send failed",
	CodeDecodeFailed:       "message decode failed",
	CodeUnauthorized:       "unauthorized user",
	CodeWebhookSignature:   "webhook signature verification failed",
	CodeBotInfoFailed:      "bot info fetch failed",
	CodeCapabilityStart:    "capability start failed",
	CodeCapabilityNotFound: "capability not found",
	CodeInvalidConfig:      "invalid configuration",
}

// Kind returns the taxonomy bucket of the code.
func (c Code) Kind() Kind {
	s := string(c)
	if len(s) < len("E-FEISHU-0") {
		return KindUnknown
	}
	switch s[len("E-FEISHU-")] {
	case '1':
		return KindAuth
	case '2':
		return KindConnection
	case '3':
		return KindMessage
	case '4':
		if c == CodeBotInfoFailed {
			return KindAuth
		}
		return KindAuthorization
	case '5':
		return KindCapability
	case '6':
		return KindConfig
	default:
		return KindUnknown
	}
}

// Error is a coded domain error. errors.Is matches two Errors with the same code.
type Error struct {
	code   Code
	detail string
	cause  error
}

// Sentinels for errors.Is.
var (
	ErrTokenFetchFailed   = &Error{code: CodeTokenFetchFailed}
	ErrTokenRefreshFailed = &Error{code: CodeTokenRefreshFailed}
	ErrConnectFailed      = &Error{code: CodeConnectFailed}
	ErrDisconnected       = &Error{code: CodeDisconnected}
	ErrReconnectExhausted = &Error{code: CodeReconnectExhausted}
	ErrSendFailed         = &Error{code: CodeSendFailed}
	ErrDecodeFailed       = &Error{code: CodeDecodeFailed}
	ErrUnauthorized       = &Error{code: CodeUnauthorized}
	ErrWebhookSignature   = &Error{code: CodeWebhookSignature}
	ErrBotInfoFailed      = &Error{code: CodeBotInfoFailed}
	ErrCapabilityStart    = &Error{code: CodeCapabilityStart}
	ErrCapabilityNotFound = &Error{code: CodeCapabilityNotFound}
	ErrInvalidConfig      = &Error{code: CodeInvalidConfig}
)

// NewError builds a coded error. detail and cause are optional.
func NewError(code Code, detail string, cause error) *Error {
	return &Error{code: code, detail: detail, cause: cause}
}

// Errorf builds a coded error with a formatted detail and no cause.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.code) + ": " + codeText[e.code]
	if e.detail != "" {
		msg += ": " + e.detail
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Code() Code     { return e.code }
func (e *Error) Kind() Kind     { return e.code.Kind() }
func (e *Error) Detail() string { return e.detail }
func (e *Error) Unwrap() error  { return e.cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return ""
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind()
	}
	return KindUnknown
}
