package protocol

import "fmt"

// Knob is a named, bounded, mutable floating-point control parameter.
//
// The backing cell is host-owned: the engine reads and writes through the
// Value pointer and never copies the knob, so an external DSP layer can hold
// the same cell inside its own parameter block and observe mutations
// directly. A knob's identity is its (channel, index) position in the
// Registry.
type Knob struct {
	// Name is the human-readable knob name used in help output
	// (e.g. "attack time").
	Name string

	// Unit is the unit the knob is defined in, for help output (e.g. "ms").
	// May be empty for dimensionless knobs.
	Unit string

	// Min and Max bound the knob's value. Every single-value mutation
	// clamps into [Min, Max].
	Min float64
	Max float64

	// Value points at the backing cell holding the current value.
	Value *float64
}

// clampedSet writes v into the backing cell, clamped into [Min, Max], and
// returns the value actually written.
func (k *Knob) clampedSet(v float64) float64 {
	if v < k.Min {
		v = k.Min
	}
	if v > k.Max {
		v = k.Max
	}
	*k.Value = v
	return v
}

// step is the increment/decrement delta: 5% of the knob's range.
func (k *Knob) step() float64 {
	return 0.05 * (k.Max - k.Min)
}

// Registry is the flat, row-major table of addressable knobs.
//
// A channel is an implicit row of knobsPerChannel contiguous knobs; the
// offset of (channel, index) is channel*knobsPerChannel + index. All access
// goes through At, which validates both indices before producing a
// reference, so an out-of-range address is an error rather than a read
// past the table.
type Registry struct {
	knobs           []Knob
	channels        int
	knobsPerChannel int
}

// NewRegistry creates a registry over the given knob table.
//
// The table must contain exactly channels*knobsPerChannel entries in
// row-major order (channel 0's knobs first), every knob must have a backing
// cell and Min <= Max, and knobsPerChannel is capped at 26 because knobs are
// addressed by a single letter A-Z.
func NewRegistry(knobs []Knob, channels, knobsPerChannel int) (*Registry, error) {
	if channels < 1 {
		return nil, fmt.Errorf("protocol: channel count must be at least 1, got %d", channels)
	}
	if knobsPerChannel < 1 || knobsPerChannel > 26 {
		return nil, fmt.Errorf("protocol: knobs per channel must be 1-26, got %d", knobsPerChannel)
	}
	if len(knobs) != channels*knobsPerChannel {
		return nil, fmt.Errorf("protocol: knob table has %d entries, want %d (%d channels x %d knobs)",
			len(knobs), channels*knobsPerChannel, channels, knobsPerChannel)
	}
	for i := range knobs {
		if knobs[i].Value == nil {
			return nil, fmt.Errorf("protocol: knob %q has no backing cell", knobs[i].Name)
		}
		if knobs[i].Min > knobs[i].Max {
			return nil, fmt.Errorf("protocol: knob %q has min %v > max %v",
				knobs[i].Name, knobs[i].Min, knobs[i].Max)
		}
	}
	return &Registry{
		knobs:           knobs,
		channels:        channels,
		knobsPerChannel: knobsPerChannel,
	}, nil
}

// At returns the knob at (channel, index).
// Returns ErrBadAddress if either index is outside the configured grid.
func (r *Registry) At(channel, index int) (*Knob, error) {
	if channel < 0 || channel >= r.channels || index < 0 || index >= r.knobsPerChannel {
		return nil, fmt.Errorf("%w: channel %d knob %d (grid is %dx%d)",
			ErrBadAddress, channel, index, r.channels, r.knobsPerChannel)
	}
	return &r.knobs[channel*r.knobsPerChannel+index], nil
}

// Channels returns the number of channels in the grid.
func (r *Registry) Channels() int { return r.channels }

// KnobsPerChannel returns the number of knobs in each channel.
func (r *Registry) KnobsPerChannel() int { return r.knobsPerChannel }

// Letter returns the wire identifier for a knob index: 'A' for index 0.
func Letter(index int) byte { return byte('A' + index) }
