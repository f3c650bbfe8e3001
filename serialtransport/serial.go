// Package serialtransport supplies io.ReadWriteCloser byte sources and
// sinks for atat.Client and atat.RunIngress, backed by a real serial port.
package serialtransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -destination=serialtransport_mock.go -package=serialtransport -source=serial.go Transport,Dialer

// Transport is an established, bidirectional byte stream to a modem. Its
// Read side feeds atat.RunIngress; its Write side is the sink passed to
// atat.NewClient.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a modem. It abstracts how the connection is
// created so tests can substitute an in-memory double without touching the
// client or ingress packages.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// SerialDialer opens a modem over a local serial port using go.bug.st/serial,
// the library this module's teacher used for the same purpose.
type SerialDialer struct {
	// PortName is the OS device path (e.g. "/dev/ttyUSB0", "COM3").
	PortName string
	// Mode configures baud rate, parity, and stop bits. A nil Mode uses
	// the library's own defaults.
	Mode *serial.Mode
	// RetryInterval is the backoff between failed open attempts. A modem
	// fresh off a power-on or hardware reset commonly fails to open for a
	// short window before its UART comes up; rather than surfacing that
	// transient failure to the caller, Dial retries until it succeeds or
	// ctx is done. Zero selects 250ms.
	RetryInterval time.Duration
}

// Dial opens the serial port, retrying on a backoff until it succeeds or
// ctx is done. Each individual open attempt is itself raced against ctx
// cancellation, since serial.Open takes no context and could otherwise
// block past a caller's deadline.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("serialtransport: port name is required")
	}
	if ctx == nil {
		return nil, errors.New("serialtransport: context is nil")
	}

	interval := d.RetryInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	var lastErr error
	for {
		tr, err := d.dialOnce(ctx)
		if err == nil {
			return tr, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("serialtransport: open %q: %w (last attempt: %v)", d.PortName, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
}

// dialOnce makes a single attempt to open the port, racing it against ctx
// cancellation.
func (d SerialDialer) dialOnce(ctx context.Context) (Transport, error) {
	type result struct {
		p   serial.Port
		err error
	}
	ch := make(chan result, 1)

	go func() {
		p, err := serial.Open(d.PortName, d.Mode)
		ch <- result{p: p, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			r := <-ch
			if r.err == nil && r.p != nil {
				_ = r.p.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("open %q: %w", d.PortName, r.err)
		}
		return r.p, nil
	}
}

// DefaultMode is a conventional 9600 8N1 mode, used when the caller has no
// specific requirement.
func DefaultMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}
