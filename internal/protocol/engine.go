package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Wire directive characters. These are fixed by the deployed protocol and
// must not change.
const (
	terminatorByte     = ';'
	directiveBasic     = '\\'
	directiveExtended  = '/'
	directiveHelp      = '?'
	directiveLayout    = '#'
	directiveRun       = '!'
	directiveActivate  = '^'
	directiveQuery     = '&'
	directiveIncrement = '+'
	directiveDecrement = '-'
	directiveSet       = '*'
	directiveApply     = '='

	legacyHelp   = 'h'
	legacyLayout = 'J'
)

// defaultMaxLineLen is the buffer bound for extended-mode lines when the
// host does not configure one. Matches the legacy firmware's 256-byte
// command limit.
const defaultMaxLineLen = 256

// MutationEvent describes one committed knob mutation. Events are delivered
// synchronously inside the dispatch lock, after the commit callback.
type MutationEvent struct {
	Channel   int
	Index     int
	Knob      string
	Directive string
	Source    string
	Old       float64
	New       float64
}

// KnobState is a read-only snapshot of one grid position.
type KnobState struct {
	Channel int     `json:"channel"`
	Index   int     `json:"index"`
	Letter  string  `json:"letter"`
	Name    string  `json:"name"`
	Unit    string  `json:"unit"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Value   float64 `json:"value"`
}

// Config carries everything the host application supplies at construction.
// The knob and command tables plus the two callbacks are the entire
// boundary to the DSP/hardware layer.
type Config struct {
	// Registry is the knob grid. Required.
	Registry *Registry

	// Commands is the legacy single-character command table. Triggers
	// reserved by the protocol ('/', '\', 'h', 'J') are intercepted before
	// the table is consulted.
	Commands []Command

	// Apply commits mutated parameters to the consuming algorithm. It is
	// invoked synchronously after every mutating directive, before the
	// handler returns. Optional; nil means no external commit is needed.
	Apply func()

	// Activate notifies the host that a knob was named by an activate
	// command, e.g. to refocus potentiometer control. Optional.
	Activate func(channel, index int)

	// OnMutation observes committed mutations, e.g. for history or
	// telemetry. Optional; runs synchronously inside the dispatch lock.
	OnMutation func(MutationEvent)

	// MaxLineLen bounds extended-mode lines. Longer lines are rejected,
	// never truncated. Defaults to 256.
	MaxLineLen int

	// Verbose enables the "Msg: "-prefixed diagnostic lines intended for
	// humans. When false they are suppressed entirely.
	Verbose bool

	// ActiveChannel and ActiveIndex seed the active knob, the grid
	// position most recently named by an activate command.
	ActiveChannel int
	ActiveIndex   int
}

// Engine is the shared protocol core: command dispatch, knob addressing and
// mutation, and response generation. Sessions created with NewSession feed
// it reassembled commands; dispatch is serialized behind an exclusive lock
// so the registry has exactly one writer path.
type Engine struct {
	mu sync.Mutex

	registry    *Registry
	commands    [commandTableSize]func(byte) bool
	commandList []Command

	apply      func()
	activate   func(channel, index int)
	onMutation func(MutationEvent)

	maxLine int
	verbose bool

	activeChannel int
	activeIndex   int
}

// New creates an engine from the host configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("protocol: registry is required")
	}
	maxLine := cfg.MaxLineLen
	if maxLine <= 0 {
		maxLine = defaultMaxLineLen
	}
	if _, err := cfg.Registry.At(cfg.ActiveChannel, cfg.ActiveIndex); err != nil {
		return nil, fmt.Errorf("initial active knob: %w", err)
	}

	return &Engine{
		registry:      cfg.Registry,
		commands:      buildCommandTable(cfg.Commands),
		commandList:   cfg.Commands,
		apply:         cfg.Apply,
		activate:      cfg.Activate,
		onMutation:    cfg.OnMutation,
		maxLine:       maxLine,
		verbose:       cfg.Verbose,
		activeChannel: cfg.ActiveChannel,
		activeIndex:   cfg.ActiveIndex,
	}, nil
}

// Active returns the grid position most recently named by an activate
// command.
func (e *Engine) Active() (channel, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeChannel, e.activeIndex
}

// Snapshot returns the current state of every grid position in
// channel-major order.
func (e *Engine) Snapshot() []KnobState {
	e.mu.Lock()
	defer e.mu.Unlock()

	states := make([]KnobState, 0, e.registry.Channels()*e.registry.KnobsPerChannel())
	for ch := 0; ch < e.registry.Channels(); ch++ {
		for i := 0; i < e.registry.KnobsPerChannel(); i++ {
			knob, err := e.registry.At(ch, i)
			if err != nil {
				continue
			}
			states = append(states, KnobState{
				Channel: ch,
				Index:   i,
				Letter:  string(Letter(i)),
				Name:    knob.Name,
				Unit:    knob.Unit,
				Min:     knob.Min,
				Max:     knob.Max,
				Value:   *knob.Value,
			})
		}
	}
	return states
}

// dispatchLine routes a complete extended-mode line by its leading
// directive character. Callers hold e.mu.
func (e *Engine) dispatchLine(s *Session, line []byte) {
	if len(line) == 0 {
		e.msgf(s, "unable to parse command")
		e.ack(s, false)
		return
	}

	rest := line[1:]
	switch line[0] {
	case directiveBasic:
		// Acknowledge while still framed, then drop to basic mode for the
		// next byte processed.
		e.ack(s, true)
		s.mode = ModeBasic
	case directiveHelp:
		e.handleHelp(s)
	case directiveLayout:
		e.handleLayout(s)
		e.ack(s, false)
	case directiveRun:
		if len(rest) != 1 {
			e.msgf(s, "run takes exactly one command character")
			e.ack(s, false)
			return
		}
		e.runByte(s, rest[0])
	case directiveActivate:
		e.handleActivate(s, rest)
	case directiveQuery:
		e.handleQuery(s, rest)
	case directiveIncrement:
		e.handleStep(s, rest, +1)
	case directiveDecrement:
		e.handleStep(s, rest, -1)
	case directiveSet:
		e.handleSet(s, rest)
	case directiveApply:
		e.handleApply(s, rest)
	default:
		e.msgf(s, "unable to parse command")
		e.ack(s, false)
	}
}

// runByte executes a legacy single-character command: reserved directives
// first, then the application command table. Callers hold e.mu.
func (e *Engine) runByte(s *Session, c byte) {
	switch c {
	case directiveExtended:
		// The switch acknowledges unconditionally, framed or not, so the
		// client gets confirmation that framing is now in effect. Deployed
		// clients depend on this.
		s.mode = ModeExtended
		e.ack(s, true)
	case directiveBasic:
		s.mode = ModeBasic
		e.ack(s, true)
	case legacyHelp:
		e.handleHelp(s)
		e.ackIfExtended(s, true)
	case legacyLayout:
		e.handleLayout(s)
		e.ackIfExtended(s, false)
	default:
		execute := e.commands[c&0x7f]
		if execute == nil {
			e.msgf(s, "unknown command %q", c)
			e.ackIfExtended(s, false)
			return
		}
		e.ackIfExtended(s, execute(c))
	}
}

// handleActivate parses an address and notifies the host's focus callback.
func (e *Engine) handleActivate(s *Session, rest []byte) {
	addr, err := e.parseAddress(rest)
	if err != nil {
		e.failf(s, err)
		return
	}
	knob, _ := e.registry.At(addr.channel, addr.index)
	e.msgf(s, "activating %s (%c) on channel %d", knob.Name, Letter(addr.index), addr.channel)
	e.activeChannel, e.activeIndex = addr.channel, addr.index
	if e.activate != nil {
		e.activate(addr.channel, addr.index)
	}
	e.ack(s, true)
}

// handleQuery renders one knob, or the whole grid for "&&".
func (e *Engine) handleQuery(s *Session, rest []byte) {
	if len(rest) > 0 && rest[0] == directiveQuery {
		e.queryAll(s)
		return
	}
	addr, err := e.parseAddress(rest)
	if err != nil {
		e.failf(s, err)
		return
	}
	knob, _ := e.registry.At(addr.channel, addr.index)
	e.printValue(s, addr.channel, addr.index, knob)
}

// queryAll renders every knob in channel-major order.
func (e *Engine) queryAll(s *Session) {
	e.msgf(s, "printing all values")
	for ch := 0; ch < e.registry.Channels(); ch++ {
		e.msgf(s, "  channel %d", ch)
		for i := 0; i < e.registry.KnobsPerChannel(); i++ {
			knob, err := e.registry.At(ch, i)
			if err != nil {
				continue
			}
			e.msgf(s, "    %s (%c) = %f%s", knob.Name, Letter(i), *knob.Value, knob.Unit)
			e.printValue(s, ch, i, knob)
		}
	}
}

// handleStep increments (dir=+1) or decrements (dir=-1) a knob by 5% of its
// range, clamped so repeated steps are idempotent at the boundary.
func (e *Engine) handleStep(s *Session, rest []byte, dir float64) {
	addr, err := e.parseAddress(rest)
	if err != nil {
		e.failf(s, err)
		return
	}
	knob, _ := e.registry.At(addr.channel, addr.index)

	verb := "incrementing"
	directive := "increment"
	if dir < 0 {
		verb = "decrementing"
		directive = "decrement"
	}

	old := *knob.Value
	knob.clampedSet(old + dir*knob.step())
	e.finishMutation(s, addr.channel, addr.index, knob, directive, verb, old)
	e.ack(s, true)
}

// handleSet writes a knob as an integer percentage of its range.
func (e *Engine) handleSet(s *Session, rest []byte) {
	addr, err := e.parseAddress(rest)
	if err != nil {
		e.failf(s, err)
		return
	}
	knob, _ := e.registry.At(addr.channel, addr.index)

	// Defensive clamp: the grammar bounds the payload to 0-100, but a
	// malformed value must still map inside the knob's range.
	pct := addr.value
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	old := *knob.Value
	knob.clampedSet(knob.Min + (knob.Max-knob.Min)*float64(pct)/100)
	e.finishMutation(s, addr.channel, addr.index, knob, "set", "setting", old)
	e.ack(s, true)
}

// handleApply performs a bulk slice assignment: one channel's full knob row
// ("=<channel>=v,...") or one knob index across all channels
// ("=<letter>=v,..."). The literal count must equal the slice length; a
// mismatch fails without a partial write. Unlike the single-value mutators,
// bulk apply does not clamp to the knob bounds; that asymmetry is part of
// the deployed wire contract.
func (e *Engine) handleApply(s *Session, rest []byte) {
	i, channel, err := scanNumber(rest, 0)
	if err != nil {
		e.failf(s, err)
		return
	}
	if i >= len(rest) {
		e.failf(s, fmt.Errorf("%w: missing slice selector", ErrSyntax))
		return
	}

	byChannel := rest[i] == directiveApply
	index := 0
	if !byChannel {
		switch c := rest[i]; {
		case c >= 'A' && c <= 'Z':
			index = int(c - 'A')
		case c >= 'a' && c <= 'z':
			index = int(c - 'a')
		default:
			e.failf(s, fmt.Errorf("%w: %q is not a slice selector", ErrSyntax, c))
			return
		}
		i++
		if i >= len(rest) || rest[i] != directiveApply {
			e.failf(s, fmt.Errorf("%w: missing %q after slice selector", ErrSyntax, "="))
			return
		}
	}
	i++

	sliceLen := e.registry.KnobsPerChannel()
	if !byChannel {
		sliceLen = e.registry.Channels()
	}
	if byChannel {
		if _, err := e.registry.At(channel, 0); err != nil {
			e.failf(s, err)
			return
		}
	} else {
		if _, err := e.registry.At(0, index); err != nil {
			e.failf(s, err)
			return
		}
	}

	values, err := parseFloatList(rest[i:])
	if err != nil {
		e.failf(s, err)
		return
	}
	if len(values) != sliceLen {
		e.failf(s, fmt.Errorf("%w: got %d values, slice holds %d", ErrArity, len(values), sliceLen))
		return
	}

	olds := make([]float64, len(values))
	for n, v := range values {
		ch, idx := channel, n
		if !byChannel {
			ch, idx = n, index
		}
		knob, _ := e.registry.At(ch, idx)
		olds[n] = *knob.Value
		*knob.Value = v
	}

	e.queryAll(s)
	e.commit()
	for n := range values {
		ch, idx := channel, n
		if !byChannel {
			ch, idx = n, index
		}
		knob, _ := e.registry.At(ch, idx)
		e.notify(s, ch, idx, knob, "apply", olds[n])
	}
	e.ack(s, true)
}

// finishMutation emits the mutation response, commits, and notifies
// observers for a single-knob mutation.
func (e *Engine) finishMutation(s *Session, channel, index int, knob *Knob, directive, verb string, old float64) {
	e.msgf(s, "%s %s (%c) on channel %d from %f%s to %f%s",
		verb, knob.Name, Letter(index), channel, old, knob.Unit, *knob.Value, knob.Unit)
	e.printValue(s, channel, index, knob)
	e.commit()
	e.notify(s, channel, index, knob, directive, old)
}

// commit invokes the host's apply callback, synchronously.
func (e *Engine) commit() {
	if e.apply != nil {
		e.apply()
	}
}

// notify delivers a mutation event to the observer hook.
func (e *Engine) notify(s *Session, channel, index int, knob *Knob, directive string, old float64) {
	if e.onMutation == nil {
		return
	}
	e.onMutation(MutationEvent{
		Channel:   channel,
		Index:     index,
		Knob:      knob.Name,
		Directive: directive,
		Source:    s.source,
		Old:       old,
		New:       *knob.Value,
	})
}

// parseFloatList parses a comma-separated list of floating-point literals.
func parseFloatList(b []byte) ([]float64, error) {
	parts := strings.Split(string(b), ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad float literal %q", ErrSyntax, part)
		}
		values = append(values, v)
	}
	return values, nil
}
