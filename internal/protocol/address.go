package protocol

import "fmt"

// maxParsedNumber bounds greedy decimal scans so a hostile digit run cannot
// overflow the accumulator. Anything this large is out of range for every
// configurable grid anyway.
const maxParsedNumber = 1 << 20

// address is the transient result of decoding a command's remainder:
// an optional channel number, a knob letter, and an optional numeric
// payload. It lives only for the duration of one dispatch.
type address struct {
	channel int
	index   int
	value   int
}

// parseAddress decodes "[channel] knobLetter [value]" from a command
// remainder and validates the address against the registry grid.
//
// Leading decimal digits are consumed greedily into the channel number; an
// absent prefix defaults to channel 0, which the grammar cannot distinguish
// from an explicit "0". The next character is the knob letter, case
// insensitive. Any trailing decimal digits become the value (used only by
// set); non-digit trailing bytes are ignored, keeping the historical
// permissive parse.
func (e *Engine) parseAddress(rest []byte) (address, error) {
	var addr address

	i, channel, err := scanNumber(rest, 0)
	if err != nil {
		return addr, err
	}
	addr.channel = channel

	if i >= len(rest) {
		return addr, fmt.Errorf("%w: missing knob letter", ErrSyntax)
	}
	c := rest[i]
	switch {
	case c >= 'A' && c <= 'Z':
		addr.index = int(c - 'A')
	case c >= 'a' && c <= 'z':
		addr.index = int(c - 'a')
	default:
		return addr, fmt.Errorf("%w: %q is not a knob letter", ErrSyntax, c)
	}
	i++

	if _, value, err := scanNumber(rest, i); err == nil {
		addr.value = value
	} else {
		return addr, err
	}

	if _, err := e.registry.At(addr.channel, addr.index); err != nil {
		return addr, err
	}
	return addr, nil
}

// scanNumber consumes a greedy run of decimal digits starting at offset i,
// returning the offset of the first non-digit and the accumulated value
// (0 when no digits are present).
func scanNumber(b []byte, i int) (next int, value int, err error) {
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		value = value*10 + int(b[i]-'0')
		if value > maxParsedNumber {
			return i, 0, fmt.Errorf("%w: number too large", ErrSyntax)
		}
		i++
	}
	return i, value, nil
}
