package errcode

import (
	"errors"
	"fmt"
)

type Code int

const (
	CodeSuccess  Code = 200
	CodeInternal Code = iota + 1001
	CodeInvalid
	CodeNotExist
	CodeExist
	CodeValidation // malformed address or header field
	CodeParse      // truncated or malformed buffer
	CodeSession    // capture backend, filter, dump or disposed session
	CodeResolution // address resolution failure
)

var code2str = map[Code]string{
	CodeSuccess:    "success",
	CodeInternal:   "internal error",
	CodeInvalid:    "invalid argument",
	CodeNotExist:   "not exist",
	CodeExist:      "already exists",
	CodeValidation: "validation error",
	CodeParse:      "parse error",
	CodeSession:    "session error",
	CodeResolution: "resolution error",
}

func (c Code) String() string {
	s, ok := code2str[c]
	if !ok {
		return fmt.Sprintf("unknown code: %d", c)
	}
	return s
}

// ErrorCode carries a Code and, optionally, the error that caused it.
type ErrorCode struct {
	code    Code
	message string
	cause   error
}

func (e ErrorCode) Code() Code { return e.code }
func (e ErrorCode) Message() string {
	if e.code == CodeSuccess {
		return e.Code().String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e ErrorCode) Error() string {
	if e.code == CodeSuccess {
		return e.code.String()
	}
	return e.Message()
}

func (e ErrorCode) Unwrap() error { return e.cause }

func New(code Code, format string, a ...any) ErrorCode {
	return ErrorCode{
		code:    code,
		message: fmt.Sprintf(format, a...),
	}
}

func NewMessage(code Code, msg string) ErrorCode {
	return New(code, "%s", msg)
}

func NewError(code Code, err error) ErrorCode {
	return ErrorCode{code: code, message: err.Error(), cause: err}
}

// Wrap attaches code to err with a context message.
func Wrap(code Code, err error, format string, a ...any) ErrorCode {
	return ErrorCode{
		code:    code,
		message: fmt.Sprintf("%s: %s", fmt.Sprintf(format, a...), err),
		cause:   err,
	}
}

// Is reports whether any error in err's chain is an ErrorCode with code.
func Is(err error, code Code) bool {
	var e ErrorCode
	if !errors.As(err, &e) {
		return false
	}
	return e.code == code
}

// CodeOf returns the code of the first ErrorCode in err's chain, CodeInternal otherwise.
func CodeOf(err error) Code {
	var e ErrorCode
	if errors.As(err, &e) {
		return e.code
	}
	return CodeInternal
}
