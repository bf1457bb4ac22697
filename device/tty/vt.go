package tty

import (
	"io"

	"antiglory/device/video/console"
	"antiglory/kernel"
)

var errNoConsole = &kernel.Error{Module: "vt", Message: "no console attached"}

// VT implements a terminal that renders its output on a console device. The
// terminal interprets the following special characters:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \b (backspace; erases the previous character, wrapping to the end of
//     the previous line if required)
//   - \t (tab; expanded to tabWidth spaces)
//
// The terminal scrolls the console up once output reaches the end of the
// last line.
type VT struct {
	cons console.Device

	width  uint32
	height uint32

	tabWidth         uint8
	defaultFg, curFg uint8
	defaultBg, curBg uint8
	cursorX          uint32
	cursorY          uint32
}

// NewVT creates a new virtual terminal device. The tabWidth parameter
// controls tab expansion.
func NewVT(tabWidth uint8) *VT {
	return &VT{
		tabWidth: tabWidth,
		cursorX:  1,
		cursorY:  1,
	}
}

// AttachTo connects the terminal to a console instance.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.defaultFg, t.defaultBg = cons.DefaultColors()
	t.curFg, t.curBg = t.defaultFg, t.defaultBg
	t.cursorX, t.cursorY = 1, 1
}

// SetColors sets the colors used for subsequent output.
func (t *VT) SetColors(fg, bg uint8) {
	t.curFg, t.curBg = fg, bg
}

// CursorPosition returns the current cursor position. Both coordinates are
// 1-based.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// SetCursorPosition sets the current cursor position to (x,y) clipping it to
// the console dimensions.
func (t *VT) SetCursorPosition(x, y uint32) {
	if t.cons == nil {
		return
	}

	if x < 1 {
		x = 1
	} else if x > t.width {
		x = t.width
	}

	if y < 1 {
		y = 1
	} else if y > t.height {
		y = t.height
	}

	t.cursorX, t.cursorY = x, y
}

// Clear blanks the console and moves the cursor to the top-left corner.
func (t *VT) Clear() {
	if t.cons == nil {
		return
	}

	t.cons.Fill(1, 1, t.width, t.height, t.defaultFg, t.defaultBg)
	t.cursorX, t.cursorY = 1, 1
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	for count, b := range data {
		if err := t.WriteByte(b); err != nil {
			return count, err
		}
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *VT) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	switch b {
	case '\r':
		t.cursorX = 1
	case '\n':
		t.lf()
	case '\b':
		t.erase()
	case '\t':
		for i := uint8(0); i < t.tabWidth; i++ {
			t.put(' ')
		}
	default:
		t.put(b)
	}

	return nil
}

// Emit implements Sink.
func (t *VT) Emit(c byte) {
	_ = t.WriteByte(c)
}

// put writes b at the cursor position and advances the cursor, wrapping to
// the next line when it moves past the last column.
func (t *VT) put(b byte) {
	t.cons.Write(b, t.curFg, t.curBg, t.cursorX, t.cursorY)

	t.cursorX++
	if t.cursorX > t.width {
		t.lf()
	}
}

// erase moves the cursor one cell back and blanks that cell.
func (t *VT) erase() {
	switch {
	case t.cursorX > 1:
		t.cursorX--
	case t.cursorY > 1:
		t.cursorX, t.cursorY = t.width, t.cursorY-1
	default:
		return
	}

	t.cons.Write(' ', t.curFg, t.curBg, t.cursorX, t.cursorY)
}

// lf moves the cursor to the start of the next line scrolling the console
// contents if the cursor is already on the last line.
func (t *VT) lf() {
	t.cursorX = 1

	if t.cursorY < t.height {
		t.cursorY++
		return
	}

	t.cons.Scroll(console.ScrollDirUp, 1)
	t.cons.Fill(1, t.height, t.width, 1, t.defaultFg, t.defaultBg)
}

// DriverName returns the name of this driver.
func (t *VT) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (t *VT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver. The terminal must be attached to a
// console first.
func (t *VT) DriverInit(_ io.Writer) *kernel.Error {
	if t.cons == nil {
		return errNoConsole
	}

	t.Clear()
	return nil
}
