package digester

import (
	"testing"
)

// harness accumulates bytes the way ingress.Manager's buffer would, and
// drains the digester loop the way ingress.Manager.Digest does: keep
// calling Digest while it makes progress (event produced or bytes
// consumed), stop once it reports (None, 0).
type harness struct {
	t   *testing.T
	d   *Digester
	buf []byte
}

func newHarness(t *testing.T, d *Digester) *harness {
	return &harness{t: t, d: d}
}

// feed appends data to the accumulated buffer and drains all events it
// produces.
func (h *harness) feed(data []byte) []Event {
	h.t.Helper()
	h.buf = append(h.buf, data...)
	var events []Event
	for {
		ev, n := h.d.Digest(h.buf)
		if n > 0 {
			h.buf = h.buf[n:]
		}
		if ev.Kind != None {
			events = append(events, ev)
		}
		if ev.Kind == None && n == 0 {
			break
		}
	}
	return events
}

// feedBytewise feeds full one byte at a time, draining after each byte.
func (h *harness) feedBytewise(full []byte) []Event {
	h.t.Helper()
	var events []Event
	for _, b := range full {
		events = append(events, h.feed([]byte{b})...)
	}
	return events
}

func TestNoResponseBody(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	events := h.feed([]byte("AT\r\r\n"))
	if len(events) != 0 {
		t.Fatalf("expected no event yet, got %v", events)
	}
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse, got %v", d.State())
	}
	if len(h.buf) != 0 {
		t.Fatalf("expected buffer drained, got %q", h.buf)
	}

	events = h.feed([]byte("OK\r\n"))
	if len(events) != 1 || events[0].Kind != Response || events[0].ResponseKind != Success {
		t.Fatalf("expected one success response event, got %v", events)
	}
	if string(events[0].Body) != "" {
		t.Fatalf("expected empty body, got %q", events[0].Body)
	}
	if d.State() != Idle {
		t.Fatalf("expected Idle after OK, got %v", d.State())
	}
	if len(h.buf) != 0 {
		t.Fatalf("expected buffer drained, got %q", h.buf)
	}
}

func TestDataResponse(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	h.feed([]byte("AT+USORD=3,16\r\n"))
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse")
	}
	h.feed([]byte(`+USORD: 3,16,"16 bytes of data"` + "\r\n"))
	events := h.feed([]byte("OK\r\n"))
	if len(events) != 1 {
		t.Fatalf("expected one event, got %v", events)
	}
	want := `+USORD: 3,16,"16 bytes of data"`
	if string(events[0].Body) != want {
		t.Fatalf("got %q want %q", events[0].Body, want)
	}
	if d.State() != Idle {
		t.Fatalf("expected Idle")
	}
}

func TestMultiLineResponse(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	h.feed([]byte("AT+GMR\r\r\n"))
	h.feed([]byte("Quectel\r\n"))
	h.feed([]byte("BG96\r\n"))
	h.feed([]byte("Revision: BG96MAR02A07M1G\r\n"))
	events := h.feed([]byte("OK\r\n"))
	if len(events) != 1 {
		t.Fatalf("expected one event, got %v", events)
	}
	want := "Quectel\r\nBG96\r\nRevision: BG96MAR02A07M1G"
	if string(events[0].Body) != want {
		t.Fatalf("got %q want %q", events[0].Body, want)
	}
}

func TestUrcInIdle(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	events := h.feed([]byte(`+UUSORD: 3,16,"16 bytes of data"` + "\r\n"))
	if len(events) != 1 || events[0].Kind != Urc {
		t.Fatalf("expected one URC event, got %v", events)
	}
	want := `+UUSORD: 3,16,"16 bytes of data"`
	if string(events[0].Body) != want {
		t.Fatalf("got %q want %q", events[0].Body, want)
	}
	if d.State() != Idle {
		t.Fatalf("expected state to remain Idle")
	}
}

func TestErrorResponse(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	h.feed([]byte("AT+CFUN=1\r\r\n"))
	events := h.feed([]byte("ERROR\r\n"))
	if len(events) != 1 || events[0].Kind != Response || events[0].ResponseKind != Failure {
		t.Fatalf("expected one failure response, got %v", events)
	}
	if d.State() != Idle {
		t.Fatalf("expected Idle")
	}
	if len(h.buf) != 0 {
		t.Fatalf("expected buffer empty, got %q", h.buf)
	}
}

func TestCmeAndCmsErrors(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)
	h.feed([]byte("AT+CPIN?\r\r\n"))
	events := h.feed([]byte("+CME ERROR: 10\r\n"))
	if len(events) != 1 || events[0].ResponseKind != CmeFailure || events[0].Code != 10 {
		t.Fatalf("expected CmeFailure code 10, got %v", events)
	}

	d2 := New(DefaultConfig(), nil)
	h2 := newHarness(t, d2)
	h2.feed([]byte("AT+CMGS=1\r\r\n"))
	events2 := h2.feed([]byte("+CMS ERROR: 500\r\n"))
	if len(events2) != 1 || events2[0].ResponseKind != CmsFailure || events2[0].Code != 500 {
		t.Fatalf("expected CmsFailure code 500, got %v", events2)
	}
}

func TestAbortedResponse(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)
	h.feed([]byte("AT+LONGCMD\r\r\n"))
	events := h.feed([]byte("ABORTED\r\n"))
	if len(events) != 1 || events[0].ResponseKind != AbortedFailure {
		t.Fatalf("expected AbortedFailure, got %v", events)
	}
}

func TestPromptKeepsReceivingResponse(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)
	h.feed([]byte(`AT+CMGS="+1234567890"` + "\r\r\n"))
	events := h.feed([]byte("> "))
	if len(events) != 1 || events[0].Kind != Prompt || events[0].PromptByte != '>' {
		t.Fatalf("expected one prompt event, got %v", events)
	}
	if d.State() != ReceivingResponse {
		t.Fatalf("expected to remain in ReceivingResponse after a prompt")
	}
	events = h.feed([]byte("+CMGS: 123\r\nOK\r\n"))
	if len(events) != 1 || events[0].ResponseKind != Success {
		t.Fatalf("expected final OK to succeed, got %v", events)
	}
	if d.State() != Idle {
		t.Fatalf("expected Idle after final OK")
	}
}

func TestChunkwiseNonATNoise(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	events := h.feed([]byte("THIS FORM"))
	if len(events) != 0 {
		t.Fatalf("expected no event yet, got %v", events)
	}
	if d.State() != Idle {
		t.Fatalf("expected Idle")
	}

	events = h.feed([]byte("AT SUCKS\r\n"))
	if len(events) != 0 {
		t.Fatalf("expected no response enqueued, got %v", events)
	}
	if d.State() != Idle {
		t.Fatalf("expected state to remain Idle")
	}
	if len(h.buf) != 0 {
		t.Fatalf("expected buffer eventually empty, got %q", h.buf)
	}
}

func TestBytewiseATCommand(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)
	h.feedBytewise([]byte("AT\r\n"))
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse by the final byte, got %v", d.State())
	}
}

func TestByteWiseMatchesWholeLineForDataResponse(t *testing.T) {
	whole := New(DefaultConfig(), nil)
	wholeEvents := newHarness(t, whole).feed([]byte("AT+CSQ\r\r\n+CSQ: 15,99\r\nOK\r\n"))

	byBytes := New(DefaultConfig(), nil)
	byteEvents := newHarness(t, byBytes).feedBytewise([]byte("AT+CSQ\r\r\n+CSQ: 15,99\r\nOK\r\n"))

	if len(wholeEvents) != len(byteEvents) {
		t.Fatalf("event count mismatch: whole=%v bytewise=%v", wholeEvents, byteEvents)
	}
	for i := range wholeEvents {
		if wholeEvents[i].Kind != byteEvents[i].Kind || string(wholeEvents[i].Body) != string(byteEvents[i].Body) {
			t.Fatalf("event %d mismatch: whole=%+v bytewise=%+v", i, wholeEvents[i], byteEvents[i])
		}
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)
	h.feed([]byte("AT\r\r\n"))
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse")
	}
	d.Reset()
	d.Reset()
	if d.State() != Idle {
		t.Fatalf("expected Idle after Reset")
	}
}

func TestNoiseRunTruncatesPastThreshold(t *testing.T) {
	d := New(DefaultConfig(), nil)
	h := newHarness(t, d)

	// First chunk: short enough to just mark the run incomplete, not yet
	// truncate it.
	events := h.feed(make([]byte, 64))
	if len(events) != 0 {
		t.Fatalf("expected no event yet, got %v", events)
	}
	if len(h.buf) != 64 {
		t.Fatalf("expected the run retained in full so far, got len=%d", len(h.buf))
	}

	// Second chunk pushes the still-unterminated run past maxNoiseRun; the
	// digester should truncate it down to a short tail rather than retain
	// it indefinitely.
	events = h.feed(make([]byte, 200))
	if len(events) != 0 {
		t.Fatalf("expected no event, got %v", events)
	}
	if len(h.buf) >= maxNoiseRun {
		t.Fatalf("expected the unterminated run to be truncated, got len=%d", len(h.buf))
	}

	// The digester must still recover and parse a well-formed command
	// normally afterward.
	events = h.feed([]byte("\r\nAT\r\r\n"))
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse after truncated noise clears, got %v (events=%v)", d.State(), events)
	}
	events = h.feed([]byte("OK\r\n"))
	if len(events) != 1 || events[0].ResponseKind != Success {
		t.Fatalf("expected success after recovery, got %v", events)
	}
}

func TestForceReceiveState(t *testing.T) {
	d := New(Config{LineTerm: '\r', FormatByte: '\n', EchoEnabled: false}, nil)
	h := newHarness(t, d)
	d.ForceReceiveState()
	if d.State() != ReceivingResponse {
		t.Fatalf("expected ReceivingResponse")
	}
	events := h.feed([]byte("OK\r\n"))
	if len(events) != 1 || events[0].ResponseKind != Success {
		t.Fatalf("expected success, got %v", events)
	}
}
