// Package plcerr defines the closed error-kind taxonomy shared by every
// layer of the tag client: wire codecs, the protocol stack, the PLC
// coordinator, and tag operations report a Kind alongside the usual Go
// error chain so callers can branch on outcome without parsing strings.
package plcerr

import "fmt"

// Kind is a closed set of error categories. The zero value OK means
// success and is never returned wrapped in an *Error.
type Kind int

const (
	OK Kind = iota
	Pending
	Abort

	BadParam
	NullPtr
	TooLarge
	TooSmall
	OutOfBounds
	Unsupported
	NotImplemented

	BadGateway
	BadDevice
	Open
	BadConnection

	Read
	Write
	Timeout
	NoData
	Partial

	BadData
	BadReply
	BadStatus
	RemoteErr
	Encode
	Decode
	NoMatch

	NoMem
	Thread
	MutexInit
	MutexLock
	MutexUnlock
	MutexDestroy
	NotFound
	NotEmpty
	NotAllowed
)

var kindNames = map[Kind]string{
	OK:              "ok",
	Pending:         "pending",
	Abort:           "abort",
	BadParam:        "bad_param",
	NullPtr:         "null_ptr",
	TooLarge:        "too_large",
	TooSmall:        "too_small",
	OutOfBounds:     "out_of_bounds",
	Unsupported:     "unsupported",
	NotImplemented:  "not_implemented",
	BadGateway:      "bad_gateway",
	BadDevice:       "bad_device",
	Open:            "open",
	BadConnection:   "bad_connection",
	Read:            "read",
	Write:           "write",
	Timeout:         "timeout",
	NoData:          "no_data",
	Partial:         "partial",
	BadData:         "bad_data",
	BadReply:        "bad_reply",
	BadStatus:       "bad_status",
	RemoteErr:       "remote_err",
	Encode:          "encode",
	Decode:          "decode",
	NoMatch:         "no_match",
	NoMem:           "no_mem",
	Thread:          "thread",
	MutexInit:       "mutex_init",
	MutexLock:       "mutex_lock",
	MutexUnlock:     "mutex_unlock",
	MutexDestroy:    "mutex_destroy",
	NotFound:        "not_found",
	NotEmpty:        "not_empty",
	NotAllowed:      "not_allowed",
}

// String returns the contract name of the kind (e.g. "bad_param").
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error wraps a Kind with a message and optional underlying cause.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is matches on Kind so callers can do errors.Is(err, plcerr.Timeout)
// after wrapping Timeout in a sentinel via New(Timeout, "").
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind around an existing cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *plcerr.Error,
// returning OK for a nil error and Unsupported for any other error type
// so callers always get a kind to branch on.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var pe *Error
	for {
		if e, ok := err.(*Error); ok {
			pe = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
		if err == nil {
			break
		}
	}
	if pe != nil {
		return pe.Kind
	}
	return Unsupported
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
