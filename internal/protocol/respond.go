package protocol

import (
	"fmt"
)

// Response framing. Value lines are the machine-readable surface; "Msg: "
// lines are purely for humans and are suppressed when verbose output is
// off. Acknowledgements terminate extended-mode control and mutating
// directives.
const (
	msgPrefix  = "Msg: "
	ackSuccess = "ACK=1\n"
	ackFailure = "ACK=0\n"
)

// Responses are best-effort: the protocol guarantees no delivery, so write
// errors on the transport are dropped here and surface, if at all, as
// transport-level disconnects.

// printValue renders one knob as <LETTER><CHANNEL>=<value>.
func (e *Engine) printValue(s *Session, channel, index int, knob *Knob) {
	fmt.Fprintf(s.out, "%c%d=%f\n", Letter(index), channel, *knob.Value)
}

// msgf renders one human-readable diagnostic line, gated by the verbose
// configuration flag.
func (e *Engine) msgf(s *Session, format string, args ...any) {
	if !e.verbose {
		return
	}
	fmt.Fprintf(s.out, msgPrefix+format+"\n", args...)
}

// ack emits a success or failure acknowledgement unconditionally.
func (e *Engine) ack(s *Session, ok bool) {
	if ok {
		fmt.Fprint(s.out, ackSuccess)
		return
	}
	fmt.Fprint(s.out, ackFailure)
}

// ackIfExtended acknowledges only when the session is framed. Basic mode
// has no framing to delimit an acknowledgement, so legacy commands stay
// silent there.
func (e *Engine) ackIfExtended(s *Session, ok bool) {
	if s.mode == ModeExtended {
		e.ack(s, ok)
	}
}

// failf reports a command failure: a diagnostic for humans and a failure
// acknowledgement for the machine.
func (e *Engine) failf(s *Session, err error) {
	e.msgf(s, "%v", err)
	e.ack(s, false)
}

// handleHelp renders the usage block, the configured knob table, and the
// configured legacy commands. Every line is for human consumption, so with
// verbose output off help produces nothing.
func (e *Engine) handleHelp(s *Session) {
	e.msgf(s, "KnobGrid control protocol help")
	e.msgf(s, "channels: %d", e.registry.Channels())
	e.msgf(s, "directives:")
	e.msgf(s, `  \; - switch to basic (legacy) mode`)
	e.msgf(s, "  / - switch to extended mode (note the lack of a semicolon)")
	e.msgf(s, "  ?; - print this help")
	e.msgf(s, "  #; - print layout (not implemented)")
	e.msgf(s, "  !<command>; - run the specified 1-character command")
	e.msgf(s, "  ^[channel]<knob>; - activate the specified knob")
	e.msgf(s, "  &&; - query all knob values")
	e.msgf(s, "  &[channel]<knob>; - query the specified knob")
	e.msgf(s, "  +[channel]<knob>; - increment the specified knob by 5%% of its range")
	e.msgf(s, "  -[channel]<knob>; - decrement the specified knob by 5%% of its range")
	e.msgf(s, "  *[channel]<knob><0-100>; - set the specified knob as a percentage of its range")
	e.msgf(s, "  =<channel|knob>=<comma-separated values>; - set a whole channel row or knob column")
	e.msgf(s, "knobs:")
	for i := 0; i < e.registry.KnobsPerChannel(); i++ {
		knob, err := e.registry.At(0, i)
		if err != nil {
			continue
		}
		e.msgf(s, "  %c - %s (%g%s-%g%s)",
			Letter(i), knob.Name, knob.Min, knob.Unit, knob.Max, knob.Unit)
	}
	e.msgf(s, "commands:")
	for _, cmd := range e.commandList {
		e.msgf(s, "  %c - %s", cmd.Trigger, cmd.Name)
	}
}

// handleLayout is the machine-readable topology description, which the
// protocol reserves but does not implement yet. The stub is deterministic:
// a diagnostic when verbose, and the caller follows with a failure
// acknowledgement so clients get an explicit signal rather than silence.
//
// TODO: emit the layout JSON once the companion app defines its schema.
func (e *Engine) handleLayout(s *Session) {
	e.msgf(s, "layout not implemented")
}
