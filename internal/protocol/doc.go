// Package protocol implements the KnobGrid wire protocol engine.
//
// The engine speaks a terse, human-readable, line-oriented command language
// that lets a companion app or terminal enumerate, read, and mutate a
// device's named, bounded floating-point control parameters ("knobs")
// arranged on a two-dimensional grid of channels.
//
// # Architecture
//
// Bytes flow from a transport into a per-transport Session, which reassembles
// them into complete commands and hands them to the shared Engine:
//
//	transport ──byte──► Session ──line──► Engine ──mutates──► Registry
//	    ▲                                   │
//	    └────────── responses ◄─────────────┘
//
// # Modes
//
// A session starts in basic mode, where every byte is a complete legacy
// one-character command dispatched immediately. The "/" byte switches the
// session to extended mode, where bytes accumulate until a ";" terminator
// forms a framed multi-character command. "\;" returns to basic mode.
//
// # Grammar
//
//	help        ::= "?" ";"
//	layout      ::= "#" ";"
//	run         ::= "!" CHAR ";"
//	activate    ::= "^" [CHANNEL] LETTER ";"
//	query_all   ::= "&&" ";"
//	query       ::= "&" [CHANNEL] LETTER ";"
//	increment   ::= "+" [CHANNEL] LETTER ";"
//	decrement   ::= "-" [CHANNEL] LETTER ";"
//	set         ::= "*" [CHANNEL] LETTER PCT ";"
//	apply       ::= "=" (CHANNEL | LETTER) "=" FLOAT {"," FLOAT} ";"
//	mode_basic  ::= "\" ";"
//	mode_ext    ::= "/"              (no terminator; switches immediately)
//
// CHANNEL is an optional unsigned decimal prefix defaulting to 0. Knob
// letters are case-insensitive A-Z. Responses are newline-delimited value
// lines of the form <LETTER><CHANNEL>=<value>, "Msg: "-prefixed diagnostics
// for humans (suppressed unless verbose output is configured), and ACK=1 or
// ACK=0 acknowledgements terminating extended-mode control and mutating
// directives.
//
// # Error Handling
//
// All protocol errors are non-fatal and locally recovered: the offending
// line is discarded, knob state is left unchanged, and failure is reported
// via ACK=0 in extended mode. Basic mode has no framing and fails silently,
// matching the legacy protocol. Overlong extended-mode lines are discarded
// up to the next terminator rather than truncated or allowed to overflow.
//
// # Thread Safety
//
// Command dispatch is serialized behind an exclusive lock inside Engine, so
// sessions on separate goroutines cannot interleave a bulk apply with a
// query. A single Session is not safe for concurrent use; give each
// transport its own Session, or serialize access and call Reset between
// transports when multiplexing one.
package protocol
