// Package urc defines the pluggable hook that lets a domain-specific URC
// framing (for example, a length-value payload with no line terminator) be
// recognized before the default line-oriented digester runs.
package urc

// Outcome classifies what a Matcher did with the buffer it was offered.
type Outcome int

const (
	// NotHandled means this matcher declines; the digester should fall
	// through to its default line-terminated URC handling.
	NotHandled Outcome = iota

	// Incomplete means this matcher recognizes the prefix as belonging to
	// it but needs more bytes before it can extract a full frame. The
	// digester must not consume anything and must wait for more input.
	Incomplete

	// Complete means this matcher extracted a full URC frame. Consumed
	// reports how many leading bytes of buf were consumed; Frame is the
	// extracted URC payload.
	Complete
)

// Matcher recognizes non-standard URC framings ahead of the digester's
// default "+...\r\n" line handling. The default, NopMatcher, always
// declines, which is how atat stays compatible with plain line-terminated
// URCs out of the box.
type Matcher interface {
	// Process inspects buf (the full unconsumed ingress buffer, not a
	// chunk) and reports whether it handled the prefix.
	Process(buf []byte) (outcome Outcome, consumed int, frame []byte)
}

// NopMatcher always reports NotHandled, deferring to the digester's default
// line-terminated URC extraction.
type NopMatcher struct{}

func (NopMatcher) Process(buf []byte) (Outcome, int, []byte) {
	return NotHandled, 0, nil
}

var _ Matcher = NopMatcher{}
