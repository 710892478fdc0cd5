package protocol

import "io"

// Mode identifies the parser state of a session.
type Mode int

const (
	// ModeBasic is the legacy, unframed compatibility mode: every byte is a
	// complete one-character command. Sessions start here.
	ModeBasic Mode = iota

	// ModeExtended is the framed mode: bytes accumulate until a ";"
	// terminator forms a complete multi-character command.
	ModeExtended
)

// String returns the mode name for logging.
func (m Mode) String() string {
	switch m {
	case ModeBasic:
		return "basic"
	case ModeExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// Session reassembles one transport's byte stream into commands and carries
// the responses back. It owns the mode state machine and the bounded line
// buffer; the heavy lifting (parsing, knob mutation, acknowledgement) is
// delegated to the shared Engine under its dispatch lock.
//
// A Session is single-consumer: it must not be used from multiple
// goroutines concurrently. Give each transport its own Session. A caller
// that insists on multiplexing one session across transports must call
// Reset between them so a line begun on one transport cannot be spliced
// with bytes from another.
type Session struct {
	engine *Engine
	out    io.Writer
	mode   Mode

	// buf accumulates an extended-mode line. Its capacity is fixed at the
	// engine's configured maximum line length; append never reallocates.
	buf []byte

	// discarding is set after an overflow so the rest of the oversized
	// line is dropped up to the next terminator instead of being parsed
	// as garbage.
	discarding bool

	// source labels the transport for mutation events (e.g. "serial",
	// "tcp"). Optional.
	source string
}

// NewSession creates a session writing its responses to out.
func (e *Engine) NewSession(out io.Writer) *Session {
	return &Session{
		engine: e,
		out:    out,
		mode:   ModeBasic,
		buf:    make([]byte, 0, e.maxLine),
	}
}

// SetSource labels the session's transport for mutation events.
func (s *Session) SetSource(source string) { s.source = source }

// Mode returns the session's current parser mode.
func (s *Session) Mode() Mode { return s.mode }

// ProcessByte feeds one received byte into the session.
//
// In basic mode the byte is dispatched immediately as a legacy command. In
// extended mode it accumulates until the terminator completes a line, which
// is then dispatched; a line that exhausts the buffer before terminating is
// discarded with a single failure acknowledgement and the remainder of the
// oversized line is dropped.
//
// Processing is synchronous: the command, its commit callback, and its
// response complete before ProcessByte returns.
func (s *Session) ProcessByte(c byte) {
	if s.mode == ModeBasic {
		s.engine.mu.Lock()
		s.engine.runByte(s, c)
		s.engine.mu.Unlock()
		return
	}

	if c == terminatorByte {
		if s.discarding {
			s.discarding = false
			return
		}
		line := s.buf
		s.engine.mu.Lock()
		s.engine.dispatchLine(s, line)
		s.engine.mu.Unlock()
		s.buf = s.buf[:0]
		return
	}

	if s.discarding {
		return
	}
	if len(s.buf) == cap(s.buf) {
		s.discarding = true
		s.buf = s.buf[:0]
		s.engine.msgf(s, "discarding overlong command")
		s.engine.ack(s, false)
		return
	}
	s.buf = append(s.buf, c)
}

// Write feeds every byte of p into the session, implementing io.Writer so
// transports can copy received data straight in. It never fails; the
// protocol reports its own errors on the wire.
func (s *Session) Write(p []byte) (int, error) {
	for _, c := range p {
		s.ProcessByte(c)
	}
	return len(p), nil
}

// Reset discards any partially accumulated line without changing mode.
// It exists so one session can service multiple transports in round-robin
// without cross-contaminating lines; sessions dedicated to one transport
// never need it.
func (s *Session) Reset() {
	s.buf = s.buf[:0]
	s.discarding = false
}
