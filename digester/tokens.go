// Package digester implements the streaming byte parser at the center of
// the AT-command protocol engine.
//
// A Digester is a pure function over (buffer, state, URC matcher) that
// classifies the accumulated, unprocessed bytes of a modem's output into
// one of four events: no complete event yet (None), a line-mode prompt
// (Prompt), an unsolicited result code (Urc), or a completed command
// response (Response). It never allocates beyond what a single call needs,
// never blocks, and tolerates being handed one byte at a time or a whole
// burst at once — chunk boundaries never change the sequence of events a
// whole-stream digest would produce.
//
// # Protocol
//
// Commands are terminated by a line-termination byte (default '\r').
// Responses and URCs are CRLF-terminated lines, concluded by one of a
// small set of well-known terminal tokens: OK, ERROR, "+CME ERROR: <code>",
// "+CMS ERROR: <code>", ABORTED, or a single prompt byte ('>' or '@').
package digester

import (
	"bytes"
	"strconv"
)

// Wire-level tokens recognized by the digester. The terminator itself
// (normally "\r\n") is configurable on the Digester — see Config and New.
const (
	// Prompt bytes. A prompt is a single byte, not a whole line: the
	// digester consumes exactly one byte on recognizing it.
	promptArrow = '>'
	promptAt    = '@'

	tokOK      = "OK"
	tokError   = "ERROR"
	tokAborted = "ABORTED"
	tokCme     = "+CME ERROR:"
	tokCms     = "+CMS ERROR:"

	echoPrefix = "AT"
	urcPrefix  = '+'
)

// maxNoiseRun bounds how long an unterminated, unrecognized run of bytes in
// Idle is retained before it is truncated. The digester does not bound the
// buffer it is handed, so without a bound of its own a modem that never
// emits a terminator (a miswired line, a baud mismatch) would grow the
// retained noise run until the caller's buffer fills (in ingress.Manager,
// until Write reports an overflow).
const maxNoiseRun = 128

func isPrompt(b byte) bool { return b == promptArrow || b == promptAt }

// isProperPrefix reports whether buf is a non-empty, strict prefix of
// prefix — i.e. buf might still grow into a full match on more input.
func isProperPrefix(buf []byte, prefix string) bool {
	if len(buf) == 0 || len(buf) >= len(prefix) {
		return false
	}
	return string(buf) == prefix[:len(buf)]
}

// findLineStart returns the index at which a line beginning with literal
// starts (the index is either 0 or immediately preceded by the terminator's
// final byte), or -1 if no such line start exists in buf yet.
func findLineStart(buf []byte, literal string, term []byte) int {
	off := 0
	last := term[len(term)-1]
	for {
		i := bytes.Index(buf[off:], []byte(literal))
		if i < 0 {
			return -1
		}
		idx := off + i
		if idx == 0 || buf[idx-1] == last {
			return idx
		}
		off = idx + 1
	}
}

// findTerminalLine returns the [start, consumedThroughTerminator] span of a
// complete line that is exactly literal (start of line through terminator),
// or ok=false if no such complete line is present yet.
func findTerminalLine(buf []byte, literal string, term []byte) (start, consumed int, ok bool) {
	start = findLineStart(buf, literal, term)
	if start < 0 {
		return 0, 0, false
	}
	rest := buf[start+len(literal):]
	if !bytes.HasPrefix(rest, term) {
		return 0, 0, false
	}
	return start, start + len(literal) + len(term), true
}

// findCodedLine locates a line starting with prefix (e.g. "+CME ERROR:")
// and, once its terminator has arrived, parses the trailing numeric code.
func findCodedLine(buf []byte, prefix string, term []byte) (consumed int, code int, ok bool) {
	start := findLineStart(buf, prefix, term)
	if start < 0 {
		return 0, 0, false
	}
	rest := buf[start+len(prefix):]
	nl := bytes.Index(rest, term)
	if nl < 0 {
		return 0, 0, false
	}
	numeric := bytes.TrimSpace(rest[:nl])
	n, err := strconv.Atoi(string(numeric))
	if err != nil {
		n = 0
	}
	return start + len(prefix) + nl + len(term), n, true
}
