// Package ingress owns the receive buffer and pumps bytes from the serial
// source through the digester, publishing classified events onto the
// response and URC queues and honoring control commands sent by the
// client. Write and Digest never block. They share the buffer without any
// synchronization, so they must not run concurrently with each other;
// atat.RunIngress calls both from one goroutine.
package ingress

import (
	"fmt"

	"github.com/BlackbirdHQ/atat-go/digester"
	"github.com/BlackbirdHQ/atat-go/queue"
	"github.com/BlackbirdHQ/atat-go/urc"
)

// Control is a command sent from the client context to the ingress
// context across the control queue.
type Control int

const (
	// Reset clears the buffer and returns the digester to Idle.
	Reset Control = iota
	// ForceReceiveState forces the digester into ReceivingResponse,
	// used when echo is disabled.
	ForceReceiveState
)

// ErrOverflow is pushed onto the response queue (wrapped in a Frame) when
// the ingress buffer cannot accept incoming bytes without exceeding its
// fixed capacity. It is defined here, rather than in the top-level atat
// package, so that Manager never needs to import its own consumer; the atat
// package aliases this value as atat.ErrOverflow for callers.
var ErrOverflow = fmt.Errorf("atat/ingress: buffer overflow")

// ResponseError wraps a digester classification of a terminated command
// that did not succeed. atat.Client turns this into the public, typed
// error taxonomy (CmeError, CmsError, ErrError, ErrAborted) when it pops a
// frame off the response queue; Manager itself does not know about that
// taxonomy, only about the digester's classification.
type ResponseError struct {
	Kind digester.ResponseKind
	Code int
}

func (e *ResponseError) Error() string {
	switch e.Kind {
	case digester.Failure:
		return "atat/ingress: ERROR"
	case digester.AbortedFailure:
		return "atat/ingress: ABORTED"
	case digester.CmeFailure:
		return fmt.Sprintf("atat/ingress: +CME ERROR: %d", e.Code)
	case digester.CmsFailure:
		return fmt.Sprintf("atat/ingress: +CMS ERROR: %d", e.Code)
	default:
		return "atat/ingress: response error"
	}
}

// Config configures a Manager's fixed buffer capacity and wire parameters.
type Config struct {
	BufferCapacity  int
	ResponseQueueSz int
	UrcQueueSz      int
	ControlQueueSz  int
	Digester        digester.Config
}

// Manager owns the ingress buffer and digester and is the sole writer and
// reader of both. The response, URC, and control queues are the only state
// shared with the client context.
type Manager struct {
	buf *buffer
	dig *digester.Digester

	responses *queue.Framed
	urcs      *queue.Framed
	control   *queue.Ring[Control]
}

// New constructs a Manager. matcher may be nil (urc.NopMatcher{} is used).
func New(cfg Config, matcher urc.Matcher) *Manager {
	return &Manager{
		buf:       newBuffer(cfg.BufferCapacity),
		dig:       digester.New(cfg.Digester, matcher),
		responses: queue.NewFramed(cfg.ResponseQueueSz),
		urcs:      queue.NewFramed(cfg.UrcQueueSz),
		control:   queue.NewRing[Control](cfg.ControlQueueSz),
	}
}

// Responses returns the response queue for the client to consume.
func (m *Manager) Responses() *queue.Framed { return m.responses }

// Urcs returns the URC queue for the client to consume.
func (m *Manager) Urcs() *queue.Framed { return m.urcs }

// Control returns the control queue for the client to push onto.
func (m *Manager) Control() *queue.Ring[Control] { return m.control }

// Len, Capacity, IsEmpty expose the buffer's fill level for external flow
// control (for example, to decide whether to keep reading from a serial
// port into a larger DMA ring before handing bytes to Write).
func (m *Manager) Len() int      { return m.buf.len() }
func (m *Manager) Capacity() int { return m.buf.cap() }
func (m *Manager) IsEmpty() bool { return m.buf.isEmpty() }

// Write appends bytes received from the serial source to the buffer. It
// never blocks. If appending would exceed
// the buffer's fixed capacity, Write synthesizes exactly one
// Response(Err(Overflow)) event on the response queue, clears the buffer,
// and resets the digester to Idle so the next valid command recovers
// normal operation; the new bytes that triggered the overflow are
// discarded along with the rest of the stale buffer.
func (m *Manager) Write(p []byte) {
	if m.buf.append(p) {
		return
	}
	m.responses.TryPushBytes(nil, ErrOverflow)
	m.buf.clear()
	m.dig.Reset()
}

// Digest drains the control queue, then repeatedly invokes the digester
// against the accumulated buffer until it can make no further progress.
// Every non-None event is pushed onto the appropriate queue; bytes the
// digester consumed (whether or not they produced an event) are removed
// from the head of the buffer. Digest never blocks.
func (m *Manager) Digest() {
	m.drainControl()

	for {
		ev, consumed := m.dig.Digest(m.buf.bytes())
		if consumed > 0 {
			m.buf.advance(consumed)
		}

		switch ev.Kind {
		case digester.None:
			if consumed == 0 {
				return
			}
			continue
		case digester.Urc:
			m.urcs.TryPushBytes(ev.Body, nil)
		case digester.Prompt:
			m.responses.TryPushBytes(nil, nil)
		case digester.Response:
			switch ev.ResponseKind {
			case digester.Success:
				m.responses.TryPushBytes(ev.Body, nil)
			default:
				m.responses.TryPushBytes(nil, &ResponseError{Kind: ev.ResponseKind, Code: ev.Code})
			}
		}
	}
}

func (m *Manager) drainControl() {
	for {
		c, ok := m.control.TryPop()
		if !ok {
			return
		}
		switch c {
		case Reset:
			m.buf.clear()
			m.dig.Reset()
		case ForceReceiveState:
			m.dig.ForceReceiveState()
		}
	}
}
