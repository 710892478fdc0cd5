package protocol

import "errors"

// Domain errors for the protocol engine.
//
// These cover the four non-fatal failure classes of the wire protocol and
// can be checked with errors.Is(). None of them crashes the engine; the
// offending command is discarded and failure is acknowledged on the wire.
var (
	// ErrLineOverflow is returned when an extended-mode line exceeds the
	// configured maximum length before a terminator arrives.
	ErrLineOverflow = errors.New("protocol: line exceeds maximum length")

	// ErrSyntax is returned when a command cannot be parsed: an unknown
	// leading directive, a missing knob letter, or a malformed literal.
	ErrSyntax = errors.New("protocol: malformed command")

	// ErrBadAddress is returned when a channel or knob index falls outside
	// the configured grid.
	ErrBadAddress = errors.New("protocol: address out of range")

	// ErrArity is returned when a bulk apply supplies a value count that
	// does not match the addressed slice length.
	ErrArity = errors.New("protocol: value count does not match slice length")

	// ErrUnknownCommand is returned when a legacy trigger character has no
	// entry in the command table.
	ErrUnknownCommand = errors.New("protocol: unknown command character")
)
