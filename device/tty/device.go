// Package tty implements the kernel terminal. The VT renders output on a
// console device while the line discipline assembles keyboard input into
// lines handed to reader threads.
package tty

// DefaultTabWidth defines the number of spaces that tabs expand to.
const DefaultTabWidth = 4

// Sink is implemented by the output devices that the line discipline echoes
// input to. Emitting '\b' erases the previously emitted character.
type Sink interface {
	Emit(c byte)
}
