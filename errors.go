package atat

import (
	"errors"
	"fmt"

	"github.com/BlackbirdHQ/atat-go/ingress"
)

// customErrorCap bounds how much of an unrecognized error line is retained,
// keeping the error path free of unbounded allocation the way the response
// path is bounded by the ingress buffer capacity.
const customErrorCap = 64

var (
	// ErrRead is returned when the underlying serial source reports a
	// transport-level read failure.
	ErrRead = errors.New("atat: read error")

	// ErrWrite is returned when the serial sink fails to accept a command.
	ErrWrite = errors.New("atat: write error")

	// ErrTimeout is returned when a command's response does not arrive
	// within its configured timeout.
	ErrTimeout = errors.New("atat: command timed out")

	// ErrInvalidResponse is returned when a response was received but could
	// not be interpreted (for example, a caller-supplied parse routine
	// rejected it).
	ErrInvalidResponse = errors.New("atat: invalid response")

	// ErrAborted is returned when the modem reports ABORTED for the
	// outstanding command.
	ErrAborted = errors.New("atat: command aborted")

	// ErrParse is returned when a command's response body failed
	// higher-level parsing after the terminal token was reached.
	ErrParse = errors.New("atat: response parse error")

	// ErrError is returned when the modem reports a bare ERROR for the
	// outstanding command.
	ErrError = errors.New("atat: command error")

	// ErrBufferTooSmall is returned when a downstream consumer requires a
	// staging area larger than the configured ingress buffer capacity.
	ErrBufferTooSmall = errors.New("atat: buffer too small")

	// ErrOverflow is returned when the ingress buffer could not accept
	// incoming bytes without exceeding its fixed capacity. Exactly one
	// Overflow event is observable per overflowing extension. This aliases
	// ingress.ErrOverflow directly so that errors.Is succeeds against
	// frames popped straight off a Manager's response queue.
	ErrOverflow = ingress.ErrOverflow

	// ErrWouldBlock is returned by Client.SendCommand in NonBlocking mode
	// when no response is available yet.
	ErrWouldBlock = errors.New("atat: would block")

	// ErrNoDialer reports that no Dialer was supplied. No function in this
	// package returns it: ConfigBuilder.Build takes no Dialer and never
	// fails.
	ErrNoDialer = errors.New("atat: no dialer configured")
)

// CmeError represents a GSM equipment error reported as "+CME ERROR: <code>".
// The core classifies it but never interprets the numeric meaning.
type CmeError struct {
	Code int
}

func (e *CmeError) Error() string {
	return fmt.Sprintf("atat: +CME ERROR: %d", e.Code)
}

// Is allows errors.Is(err, ErrError) to succeed for CmeError, since a CME
// error is still a command-terminating error from the client's point of
// view.
func (e *CmeError) Is(target error) bool { return target == ErrError }

// CmsError represents a GSM network error reported as "+CMS ERROR: <code>".
type CmsError struct {
	Code int
}

func (e *CmsError) Error() string {
	return fmt.Sprintf("atat: +CMS ERROR: %d", e.Code)
}

func (e *CmsError) Is(target error) bool { return target == ErrError }

// ConnectionError represents a dial/connection-class final response, such
// as "NO CARRIER" or "NO DIALTONE", carried with a small numeric code
// assigned by the caller's command/response layer (the core itself does
// not assign meaning to these codes).
type ConnectionError struct {
	Code int
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("atat: connection error: %d", e.Code)
}

func (e *ConnectionError) Is(target error) bool { return target == ErrError }

// CustomError carries a truncated copy of an unrecognized terminal line,
// mirroring the original implementation's fixed-capacity custom-error
// variant instead of retaining an unbounded string.
type CustomError struct {
	data [customErrorCap]byte
	n    int
}

// NewCustomError truncates text to customErrorCap bytes and wraps it.
func NewCustomError(text []byte) *CustomError {
	e := &CustomError{}
	e.n = copy(e.data[:], text)
	return e
}

// Bytes returns the retained (possibly truncated) error text.
func (e *CustomError) Bytes() []byte { return e.data[:e.n] }

func (e *CustomError) Error() string {
	return fmt.Sprintf("atat: custom error: %q", e.data[:e.n])
}

func (e *CustomError) Is(target error) bool { return target == ErrError }
