package kbd

// releaseBit is set in the scancode sent when a key is released.
const releaseBit = 0x80

// set1 maps make codes of scancode set 1 (US layout, no modifiers) to ASCII.
// Keys without an ASCII representation map to 0.
var set1 = [...]byte{
	0, 27, '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=', '\b',
	'\t', 'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']', '\n', 0,
	'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '`', 0, '\\',
	'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/', 0, '*', 0, ' ',
}

// Decode translates a set-1 scancode into the character it produces. It
// returns false for key releases, for keys without a character and for
// characters other than printable ASCII, backspace and newline.
func Decode(scancode uint8) (byte, bool) {
	if scancode&releaseBit != 0 || int(scancode) >= len(set1) {
		return 0, false
	}

	ch := set1[scancode]
	switch {
	case ch >= ' ' && ch <= '~', ch == '\b', ch == '\n':
		return ch, true
	default:
		return 0, false
	}
}

// Encode returns the set-1 make code of the key producing ch. It is the
// inverse of Decode and is used by hosts that feed characters into the
// keyboard controller. A carriage return is encoded as the enter key.
func Encode(ch byte) (uint8, bool) {
	if ch == '\r' {
		ch = '\n'
	}

	if ch == 0 {
		return 0, false
	}

	for scancode, mapped := range set1 {
		if mapped == ch {
			return uint8(scancode), true
		}
	}

	return 0, false
}
