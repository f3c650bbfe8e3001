package atat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/BlackbirdHQ/atat-go/digester"
	"github.com/BlackbirdHQ/atat-go/ingress"
	"github.com/BlackbirdHQ/atat-go/urc"
)

// pollInterval is how often SendCommand polls the response queue while
// waiting. It is short enough not to add perceptible latency to a fast
// modem response while still yielding the goroutine between checks.
const pollInterval = time.Millisecond

// Client drives one serial link: it serializes commands onto sink, pumps
// their responses and any interleaved URCs out of an ingress.Manager's
// queues, and enforces the inter-command cooldown. SendCommand holds an
// internal mutex for its whole duration, so goroutines issuing commands at
// once are served one at a time and at most one command is outstanding.
type Client struct {
	mu   sync.Mutex
	cfg  Config
	sink io.Writer
	mgr  *ingress.Manager

	urcHandler UrcHandler
	scratch    []byte
	lastSent   time.Time
	haveSent   bool
}

// NewClient constructs a Client. sink is the serial write side; mgr is the
// ingress.Manager fed by the caller's read pump (see RunIngress). urcHandler
// may be nil, in which case URCs observed while waiting for a response are
// discarded.
func NewClient(cfg Config, sink io.Writer, mgr *ingress.Manager, urcHandler UrcHandler) *Client {
	c := &Client{
		cfg:        cfg,
		sink:       sink,
		mgr:        mgr,
		urcHandler: urcHandler,
		scratch:    make([]byte, 0, 256),
	}
	if !cfg.EchoEnabled {
		// With echo disabled, the digester's Idle-state echo handling
		// (digester.digestIdle step 2) never fires, so it can never
		// transition itself out of Idle on its own — every response would
		// otherwise be misread as URC/noise. Force the transition once,
		// up front, exactly as ingress.Manager.Control documents.
		mgr.Control().TryPush(ingress.ForceReceiveState)
	}
	return c
}

// SendCommand serializes cmd, transmits it, and waits for its response
// following the client mode configured on cmd's Client (Blocking, NonBlocking,
// or Timeout). It:
//
//  1. waits out the remainder of the inter-command cooldown;
//  2. discards any stale frames left on the response queue from a previous
//     command that was abandoned (timed out or errored);
//  3. serializes and writes cmd, returning ErrWrite on a transport failure;
//  4. if cmd.ExpectsResponse() is false, returns immediately after the write;
//  5. otherwise polls the response queue (pumping any URCs seen in the
//     meantime to urcHandler) until a response arrives or cmd's timeout
//     elapses, at which point it pushes ingress.Reset onto the control
//     queue and returns ErrTimeout.
func (c *Client) SendCommand(ctx context.Context, cmd Command) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !cmd.AbortOnly() {
		if err := c.waitCooldown(ctx); err != nil {
			return nil, err
		}
	}
	c.drainStaleResponses()
	if !c.cfg.EchoEnabled {
		// With echo disabled, the digester's Idle-state echo handling
		// (digester.digestIdle step 2) never fires, and every terminated
		// response returns it to Idle, so it cannot reach ReceivingResponse
		// on its own — the response would otherwise be misread as URC/noise.
		// Force the transition ahead of every command.
		c.mgr.Control().TryPush(ingress.ForceReceiveState)
	}

	if cap(c.scratch) < cmd.MaxLen() {
		c.scratch = make([]byte, cmd.MaxLen())
	}
	n, err := cmd.Serialize(c.scratch[:cmd.MaxLen()])
	if err != nil {
		return nil, err
	}
	if _, err := c.sink.Write(c.scratch[:n]); err != nil {
		return nil, ErrWrite
	}
	c.lastSent = now()
	c.haveSent = true

	if !cmd.ExpectsResponse() {
		return nil, nil
	}

	timeout := cmd.Timeout()
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeout
	}

	return c.awaitResponse(ctx, timeout)
}

func (c *Client) waitCooldown(ctx context.Context) error {
	if !c.haveSent || c.cfg.Cooldown <= 0 {
		return nil
	}
	remaining := c.cfg.Cooldown - time.Since(c.lastSent)
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) drainStaleResponses() {
	for {
		if _, ok := c.mgr.Responses().TryPop(); !ok {
			return
		}
	}
}

func (c *Client) pumpUrcs() {
	for {
		f, ok := c.mgr.Urcs().TryPop()
		if !ok {
			return
		}
		if c.urcHandler != nil {
			c.urcHandler(f.Bytes())
		}
	}
}

func (c *Client) awaitResponse(ctx context.Context, timeout time.Duration) ([]byte, error) {
	c.pumpUrcs()
	if f, ok := c.mgr.Responses().TryPop(); ok {
		return c.interpret(f)
	}
	if c.cfg.Mode == NonBlocking {
		return nil, ErrWouldBlock
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mgr.Control().TryPush(ingress.Reset)
			return nil, ctx.Err()
		case <-deadline.C:
			c.mgr.Control().TryPush(ingress.Reset)
			return nil, ErrTimeout
		case <-ticker.C:
			c.pumpUrcs()
			if f, ok := c.mgr.Responses().TryPop(); ok {
				return c.interpret(f)
			}
		}
	}
}

func (c *Client) interpret(f queueFrame) ([]byte, error) {
	if f.Err() == nil {
		return f.Bytes(), nil
	}
	if errors.Is(f.Err(), ErrOverflow) {
		return nil, ErrOverflow
	}
	var re *ingress.ResponseError
	if errors.As(f.Err(), &re) {
		switch re.Kind {
		case digester.Failure:
			return nil, ErrError
		case digester.AbortedFailure:
			return nil, ErrAborted
		case digester.CmeFailure:
			return nil, &CmeError{Code: re.Code}
		case digester.CmsFailure:
			return nil, &CmsError{Code: re.Code}
		}
	}
	return nil, f.Err()
}

// queueFrame is the minimal view of queue.Frame that interpret needs; it
// exists only to avoid importing the queue package into this file's
// exported surface.
type queueFrame interface {
	Bytes() []byte
	Err() error
}

// now is a seam for deterministic cooldown tests.
var now = time.Now

// RunIngress pumps bytes from src into mgr until ctx is cancelled (returning
// ctx.Err()), src reports io.EOF (returning nil), or src returns any other
// error (returned wrapped in ErrRead). It is meant to run on its own goroutine
// (see cmd/atcli, which coordinates it alongside the HTTP and MQTT
// lifecycles with an errgroup). Every Read is immediately followed by a
// Write into mgr and a Digest call, so response and URC events are
// published as soon as their terminator arrives.
func RunIngress(ctx context.Context, src io.Reader, mgr *ingress.Manager) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			mgr.Write(buf[:n])
			mgr.Digest()
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrRead, err)
		}
	}
}

// NopUrcMatcher is exported for callers assembling their own ingress.Manager
// that do not need structured URC recognition beyond the default
// line-terminated extraction.
var NopUrcMatcher urc.Matcher = urc.NopMatcher{}
