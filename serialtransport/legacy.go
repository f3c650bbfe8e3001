package serialtransport

import (
	"context"
	"errors"
	"fmt"
	"time"

	legacyserial "github.com/tarm/serial"
)

// LegacyDialer opens a modem using github.com/tarm/serial instead of
// go.bug.st/serial. Some older deployments pin this library because its
// ReadTimeout knob maps directly onto a poll loop, rather than go.bug.st's
// context-based read deadlines; LegacyDialer exists so those deployments can
// keep using it without forking the rest of this package.
type LegacyDialer struct {
	// PortName is the OS device path.
	PortName string
	// Baud is the line rate (e.g. 9600, 115200). Zero selects 9600.
	Baud int
	// ReadTimeout bounds each underlying Read call. Zero selects 200ms,
	// matching the legacy gateway this dialer is ported from.
	ReadTimeout time.Duration
}

type legacyTransport struct {
	port *legacyserial.Port
}

func (t *legacyTransport) Read(p []byte) (int, error)  { return t.port.Read(p) }
func (t *legacyTransport) Write(p []byte) (int, error) { return t.port.Write(p) }
func (t *legacyTransport) Close() error                { return t.port.Close() }

// Dial opens the port. tarm/serial's OpenPort takes no context, so
// cancellation is only observed before the open begins; once the open call
// is in flight it runs to completion.
func (d LegacyDialer) Dial(ctx context.Context) (Transport, error) {
	if d.PortName == "" {
		return nil, errors.New("serialtransport: port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baud := d.Baud
	if baud == 0 {
		baud = 9600
	}
	readTimeout := d.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 200 * time.Millisecond
	}

	p, err := legacyserial.OpenPort(&legacyserial.Config{
		Name:        d.PortName,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serialtransport: open %q: %w", d.PortName, err)
	}
	return &legacyTransport{port: p}, nil
}
