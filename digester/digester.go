package digester

import (
	"bytes"

	"github.com/BlackbirdHQ/atat-go/urc"
)

// State is the digester's two-state machine.
type State int

const (
	// Idle: no command outstanding. Input is a URC, echoed noise, or
	// garbage.
	Idle State = iota

	// ReceivingResponse: a command has been sent (or its echo detected);
	// input is the response body terminated by a well-known token.
	ReceivingResponse
)

func (s State) String() string {
	if s == ReceivingResponse {
		return "ReceivingResponse"
	}
	return "Idle"
}

// EventKind classifies what Digest produced.
type EventKind int

const (
	// None: no complete event yet; the caller must retain the buffer and
	// wait for more bytes.
	None EventKind = iota
	// Prompt: a line-mode prompt byte ('>' or '@') was seen.
	Prompt
	// Urc: one unsolicited result code was extracted.
	Urc
	// Response: a command response completed, successfully or not.
	Response
)

// ResponseKind distinguishes the ways a Response event can terminate. The
// digester only classifies; it never interprets GSM semantics, so CmeCode/
// CmsCode are opaque numbers handed to the caller.
type ResponseKind int

const (
	Success ResponseKind = iota
	Failure
	AbortedFailure
	CmeFailure
	CmsFailure
)

// Event is one classified output of a single Digest call.
type Event struct {
	Kind EventKind

	// PromptByte is set when Kind == Prompt.
	PromptByte byte

	// Body is set when Kind == Urc (the raw URC line) or when Kind ==
	// Response && ResponseKind == Success (the trimmed response body).
	// The slice aliases the buffer passed to Digest and must be copied by
	// the caller before the buffer is mutated again.
	Body []byte

	// ResponseKind and Code are set when Kind == Response.
	ResponseKind ResponseKind
	Code         int
}

// Config holds the digester's wire-format parameters.
type Config struct {
	// LineTerm is the first byte of the received line terminator (default
	// '\r'); it and FormatByte are also the bytes skipped as leading
	// whitespace.
	LineTerm byte
	// FormatByte follows LineTerm in received line terminators (default
	// '\n'), together forming the terminator sequence the digester scans
	// for.
	FormatByte byte
	// EchoEnabled indicates the modem echoes the command line back before
	// its response.
	EchoEnabled bool
}

// DefaultConfig returns the conventional AT wire parameters.
func DefaultConfig() Config {
	return Config{LineTerm: '\r', FormatByte: '\n', EchoEnabled: true}
}

// Digester is the streaming parser described by the protocol's ingress
// digest algorithm. It holds no buffer of its own — callers pass the
// accumulated, unprocessed bytes to Digest on every call — so a Digester
// itself never allocates.
type Digester struct {
	cfg     Config
	state   State
	term    []byte
	matcher urc.Matcher

	// noiseIncomplete tracks a partial, unterminated noise line so the
	// digester never clears a buffer mid-token while waiting for its
	// terminator — this is the "buf-incomplete" heuristic selected over
	// whole-buffer clearing (see the repository's open-questions record).
	// Once an unterminated run grows past maxNoiseRun, it is truncated
	// down to a small tail instead of retained forever, in case a
	// terminator never arrives.
	noiseIncomplete bool
}

// New constructs a Digester starting in Idle with the given wire config and
// URC matcher. matcher may be nil, in which case urc.NopMatcher{} is used.
func New(cfg Config, matcher urc.Matcher) *Digester {
	if matcher == nil {
		matcher = urc.NopMatcher{}
	}
	return &Digester{
		cfg:     cfg,
		term:    []byte{cfg.LineTerm, cfg.FormatByte},
		matcher: matcher,
	}
}

// State reports the digester's current state.
func (d *Digester) State() State { return d.state }

// Reset returns the digester to Idle, clearing any partial-noise tracking.
// It does not touch the caller's buffer; the caller is responsible for
// clearing it (see ingress.Manager's handling of the Reset control
// command).
func (d *Digester) Reset() {
	d.state = Idle
	d.noiseIncomplete = false
}

// ForceReceiveState forces the digester into ReceivingResponse, used when
// echo is disabled or the client suppresses echo handling.
func (d *Digester) ForceReceiveState() {
	d.state = ReceivingResponse
	d.noiseIncomplete = false
}

// Digest inspects buf — the full accumulated, unprocessed bytes, not a
// chunk — and returns the next classified event along with how many
// leading bytes of buf it consumed. The caller must remove exactly that
// many bytes from the head of its buffer before the next Digest call.
//
// Digest never blocks and never grows buf. When it returns (Event{Kind:
// None}, 0), no further progress is possible until more bytes arrive.
// Note that a return of (Event{Kind: None}, n) with n > 0 is valid and
// means "bytes were consumed (whitespace, an echo line, discarded noise)
// but no event was produced yet" — callers should keep looping in that
// case, exactly as ingress.Manager.Digest does.
func (d *Digester) Digest(buf []byte) (Event, int) {
	// Step 1: leading-whitespace trim.
	if n := leadingTerminatorRun(buf, d.cfg.LineTerm, d.cfg.FormatByte); n > 0 {
		return Event{}, n
	}

	if d.state == Idle {
		return d.digestIdle(buf)
	}
	return d.digestReceiving(buf)
}

func leadingTerminatorRun(buf []byte, lineTerm, formatByte byte) int {
	n := 0
	for n < len(buf) && (buf[n] == lineTerm || buf[n] == formatByte) {
		n++
	}
	return n
}

func (d *Digester) digestIdle(buf []byte) (Event, int) {
	// Step 2: echo handling.
	if d.cfg.EchoEnabled {
		if bytes.HasPrefix(buf, []byte(echoPrefix)) {
			if idx := bytes.Index(buf, d.term); idx >= 0 {
				consumed := idx + len(d.term)
				d.state = ReceivingResponse
				d.noiseIncomplete = false
				return Event{}, consumed
			}
			return Event{}, 0
		}
		if isProperPrefix(buf, echoPrefix) {
			return Event{}, 0
		}
	}

	// Step 3: URC handling.
	if len(buf) > 0 && buf[0] == urcPrefix {
		outcome, consumed, frame := d.matcher.Process(buf)
		switch outcome {
		case urc.Complete:
			return Event{Kind: Urc, Body: frame}, consumed
		case urc.Incomplete:
			return Event{}, 0
		}
		// NotHandled: default line-terminated extraction.
		if idx := bytes.Index(buf, d.term); idx >= 0 {
			return Event{Kind: Urc, Body: buf[:idx]}, idx + len(d.term)
		}
		return Event{}, 0
	}

	// Step 4: noise handling.
	if len(buf) == 0 {
		return Event{}, 0
	}
	if idx := bytes.Index(buf, d.term); idx >= 0 {
		d.noiseIncomplete = false
		return Event{}, idx + len(d.term)
	}
	// No terminator yet. Per the selected open-question resolution, a
	// short, possibly-growing prefix (e.g. the start of the next "AT..."
	// echo) is retained rather than discarded; only mark/keep as
	// incomplete noise once it has grown past the small threshold.
	if d.noiseIncomplete && len(buf) > maxNoiseRun {
		// The run has grown well past anything that looks like the start
		// of a real echo or URC and still has no terminator in sight — a
		// terminator may never arrive. Truncate it down to a short tail
		// (long enough to still catch a terminator split across the cut)
		// instead of retaining it forever.
		keep := len(d.term) - 1
		return Event{}, len(buf) - keep
	}
	if len(buf) > 2 {
		d.noiseIncomplete = true
	}
	return Event{}, 0
}

func (d *Digester) digestReceiving(buf []byte) (Event, int) {
	// a. OK
	if start, consumed, ok := findTerminalLine(buf, tokOK, d.term); ok {
		body := bytes.Trim(buf[:start], "\r\n")
		d.state = Idle
		return Event{Kind: Response, ResponseKind: Success, Body: body}, consumed
	}
	// b. +CME ERROR: <code>
	if consumed, code, ok := findCodedLine(buf, tokCme, d.term); ok {
		d.state = Idle
		return Event{Kind: Response, ResponseKind: CmeFailure, Code: code}, consumed
	}
	// c. +CMS ERROR: <code>
	if consumed, code, ok := findCodedLine(buf, tokCms, d.term); ok {
		d.state = Idle
		return Event{Kind: Response, ResponseKind: CmsFailure, Code: code}, consumed
	}
	// d. ERROR
	if _, consumed, ok := findTerminalLine(buf, tokError, d.term); ok {
		d.state = Idle
		return Event{Kind: Response, ResponseKind: Failure}, consumed
	}
	// e. ABORTED
	if _, consumed, ok := findTerminalLine(buf, tokAborted, d.term); ok {
		d.state = Idle
		return Event{Kind: Response, ResponseKind: AbortedFailure}, consumed
	}
	// f. prompt byte. The state stays ReceivingResponse: higher layers
	// (writing the SMS body, sending Ctrl-Z) drive what happens next, and
	// a final OK/ERROR still terminates the command afterwards.
	for i := 0; i < len(buf); i++ {
		if isPrompt(buf[i]) {
			return Event{Kind: Prompt, PromptByte: buf[i]}, i + 1
		}
	}
	// g. otherwise, wait.
	return Event{}, 0
}
