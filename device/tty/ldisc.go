package tty

import (
	"bytes"

	"antiglory/kernel/irq"
	"antiglory/kernel/thread"
)

// InputBufferSize is the capacity of the line discipline input buffer,
// enough to hold a full 80x25 screen of input.
const InputBufferSize = 80 * 25

// LineDiscipline assembles characters received from the keyboard driver
// into lines. Input is echoed to a sink as it is typed and a complete line
// is handed to the thread blocked in ReadLine once a newline arrives.
//
// Only one thread may read from a LineDiscipline.
type LineDiscipline struct {
	sink Sink
	echo bool

	input     [InputBufferSize]byte
	inputLen  int
	lineReady bool
	readers   *thread.WaitQueue

	// pending holds the bytes of the last line not yet consumed by Read.
	pending []byte
}

// NewLineDiscipline returns a line discipline which echoes its input to sink.
// Readers are scheduled by s.
func NewLineDiscipline(s *thread.Scheduler, sink Sink) *LineDiscipline {
	return &LineDiscipline{
		sink:    sink,
		echo:    sink != nil,
		readers: s.NewWaitQueue(),
	}
}

// SetEcho enables or disables echoing of input characters.
func (l *LineDiscipline) SetEcho(enabled bool) {
	l.echo = enabled && l.sink != nil
}

// Input processes a character received from the keyboard. Printable ASCII
// characters are appended to the input buffer, a backspace erases the last
// character of the line being edited and a newline completes the line and
// wakes up the reader. Any other character is ignored, as is input that
// does not fit in the buffer.
func (l *LineDiscipline) Input(c byte) {
	state := irq.Disable()
	defer irq.Restore(state)

	switch {
	case c == '\b':
		// committed lines cannot be edited
		if l.inputLen == 0 || l.input[l.inputLen-1] == '\n' {
			return
		}
		l.inputLen--
	case c == '\n', c >= ' ' && c <= '~':
		if l.inputLen+1 >= InputBufferSize {
			return
		}

		l.input[l.inputLen] = c
		l.inputLen++

		if c == '\n' {
			l.lineReady = true
			l.readers.WakeOne()
		}
	default:
		return
	}

	if l.echo {
		l.sink.Emit(c)
	}
}

// ReadLine blocks the calling thread until a complete line is available and
// returns it without the trailing newline. Input typed after the newline
// stays buffered for the next call.
func (l *LineDiscipline) ReadLine() string {
	state := irq.Disable()
	defer irq.Restore(state)

	for !l.lineReady {
		l.readers.Sleep()
	}

	end := bytes.IndexByte(l.input[:l.inputLen], '\n')
	line := string(l.input[:end])

	l.inputLen = copy(l.input[:], l.input[end+1:l.inputLen])
	l.lineReady = bytes.IndexByte(l.input[:l.inputLen], '\n') != -1

	return line
}

// Read implements io.Reader. Each line returned by ReadLine is delivered
// together with its trailing newline, possibly across several calls.
func (l *LineDiscipline) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if len(l.pending) == 0 {
		l.pending = append(append(l.pending[:0], l.ReadLine()...), '\n')
	}

	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// Buffered returns the number of bytes held in the input buffer.
func (l *LineDiscipline) Buffered() int {
	state := irq.Disable()
	defer irq.Restore(state)

	return l.inputLen
}
