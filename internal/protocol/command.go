package protocol

// commandTableSize is the size of the trigger lookup table. Triggers are
// masked to their low 7 bits, matching the legacy protocol's 7-bit ASCII
// command space.
const commandTableSize = 128

// Command binds a single trigger character to a named, fallible action.
//
// Commands extend the legacy basic-mode vocabulary: any 7-bit character not
// reserved by the protocol ('/', '\', 'h', 'J') can trigger one. The action
// runs synchronously during dispatch and its boolean result becomes the
// acknowledgement outcome in extended mode.
type Command struct {
	// Trigger is the 7-bit ASCII character that invokes the command.
	Trigger byte

	// Name is the human-readable command name used in help output.
	Name string

	// Execute performs the command and reports success. It receives the
	// trigger character, so one function can back several triggers.
	Execute func(trigger byte) bool
}

// buildCommandTable builds the dense O(1) trigger lookup from a command
// list. Later entries win on duplicate triggers, matching construction
// order precedence.
func buildCommandTable(commands []Command) [commandTableSize]func(byte) bool {
	var table [commandTableSize]func(byte) bool
	for _, cmd := range commands {
		table[cmd.Trigger&0x7f] = cmd.Execute
	}
	return table
}
