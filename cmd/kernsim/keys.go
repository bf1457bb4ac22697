package main

const (
	ctrlC     = 0x03
	backspace = 0x08
	del       = 0x7f
)

// translateKey maps a byte read from the host terminal to the character
// typed on the simulated keyboard.
func translateKey(b byte) (byte, bool) {
	switch {
	case b == ctrlC:
		return ctrlC, true
	case b == del, b == backspace:
		return '\b', true
	case b == '\r', b == '\n':
		return '\n', true
	case b >= ' ' && b < del:
		return b, true
	default:
		return 0, false
	}
}
