package usftp

import (
	"errors"
	"fmt"
)

// Const is a string-constant error type for sentinel errors, usable as a
// const declaration (`const errFoo = Const("...")`) so it can be compared
// with errors.Is without allocating.
type Const string

func (e Const) Error() string { return string(e) }

// chainError wraps cause with a formatted message, preserving it for
// errors.Unwrap/errors.Is/errors.As.
func chainError(cause error, format string, args ...any) error {
	if cause == nil {
		return fmt.Errorf(format, args...)
	}
	msg := fmt.Sprintf(format, args...)
	return &chainedError{msg: msg, cause: cause}
}

type chainedError struct {
	msg   string
	cause error
}

func (e *chainedError) Error() string { return e.msg + ": " + e.cause.Error() }
func (e *chainedError) Unwrap() error { return e.cause }

// statusMessages is the fixed status-code to message table, indexed by
// SSH_FX_* code.
var statusMessages = [...]string{
	sshFxOk:               "OK",
	sshFxEOF:              "EOF",
	sshFxNoSuchFile:       "no such file",
	sshFxPermissionDenied: "permission denied",
	sshFxFailure:          "failure",
	sshFxBadMessage:       "bad message",
	sshFxNoConnection:     "no connection",
	sshFxConnectionLost:   "connection lost",
	sshFxOPUnsupported:    "operation unsupported",
}

func statusMessage(code uint32) string {
	if code >= uint32(len(statusMessages)) {
		return "unknown error code"
	}
	return statusMessages[code]
}

// StatusError is the decoded form of an SFTP STATUS reply. Code 0 (OK) is
// never returned as an error by this package.
type StatusError struct {
	Code uint32
	Msg  string
	Lang string
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("sftp status %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("sftp status %d: %s", e.Code, statusMessage(e.Code))
}

// IsEOF reports whether err is (or wraps) a StatusError carrying
// SSH_FX_EOF.
func IsEOF(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == sshFxEOF
	}
	return false
}

// protocolError marks a malformed packet or other internal protocol
// violation, as opposed to a decoded STATUS reply. The error channel gets
// type -1 only for a reply that cannot be routed or a malformed STATUS
// reply; other protocol errors are returned without touching it.
type protocolError struct {
	msg string
}

func newProtocolError(format string, args ...any) error {
	return &protocolError{msg: fmt.Sprintf(format, args...)}
}

func (e *protocolError) Error() string { return e.msg }

// errorChannel holds the last protocol-level error kind and message. It
// is a field of Client, not a package global, so concurrent sessions do
// not clobber each other's state.
type errorChannel struct {
	errType int32 // SFTP status code, or -1 for protocol/internal errors
	message string
}

func (c *errorChannel) setStatus(code uint32, msg string) {
	c.errType = int32(code)
	c.message = msg
}

func (c *errorChannel) setProtocolError(msg string) {
	c.errType = -1
	c.message = msg
}

func (c *errorChannel) Err() (errType int32, message string) {
	return c.errType, c.message
}
