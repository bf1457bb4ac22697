package main

import (
	"bytes"
	"fmt"
	"io"

	"antiglory/device/video/console"
	"antiglory/kernel"
)

// vgaToANSI maps the low 3 bits of an EGA color index to the matching ANSI
// color offset. The intensity bit selects the bright ANSI variants.
var vgaToANSI = [8]uint8{0, 4, 2, 6, 1, 5, 3, 7}

// ansiConsole is a text console whose cells are mirrored to a host terminal
// via ANSI escape sequences. The embedded VgaTextConsole keeps the
// authoritative copy of the screen contents.
type ansiConsole struct {
	*console.VgaTextConsole

	out io.Writer
	buf bytes.Buffer

	// lastFg and lastBg track the SGR attributes last sent to the terminal.
	lastFg, lastBg int
}

func newANSIConsole(cons *console.VgaTextConsole, out io.Writer) *ansiConsole {
	return &ansiConsole{
		VgaTextConsole: cons,
		out:            out,
		lastFg:         -1,
		lastBg:         -1,
	}
}

// DriverInit initializes the wrapped console and resets the terminal.
func (c *ansiConsole) DriverInit(w io.Writer) *kernel.Error {
	if err := c.VgaTextConsole.DriverInit(w); err != nil {
		return err
	}

	c.buf.WriteString("\x1b[0m\x1b[2J")
	c.lastFg, c.lastBg = -1, -1
	_, height := c.Dimensions()
	c.redraw(1, height)
	c.flush()
	return nil
}

// Write implements console.Device.
func (c *ansiConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	width, height := c.Dimensions()
	if x < 1 || x > width || y < 1 || y > height {
		return
	}

	c.VgaTextConsole.Write(ch, fg, bg, x, y)
	c.moveTo(x, y)
	c.drawCell(x, y)
	c.flush()
}

// Fill implements console.Device.
func (c *ansiConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	c.VgaTextConsole.Fill(x, y, width, height, fg, bg)

	_, rows := c.Dimensions()
	if y < 1 {
		y = 1
	}
	last := y + height - 1
	if height == 0 || y > rows {
		return
	}
	if last > rows {
		last = rows
	}

	c.redraw(y, last)
	c.flush()
}

// Scroll implements console.Device.
func (c *ansiConsole) Scroll(dir console.ScrollDir, lines uint32) {
	c.VgaTextConsole.Scroll(dir, lines)

	_, rows := c.Dimensions()
	c.redraw(1, rows)
	c.flush()
}

// redraw repaints rows first through last from the wrapped console.
func (c *ansiConsole) redraw(first, last uint32) {
	width, _ := c.Dimensions()
	for y := first; y <= last; y++ {
		c.moveTo(1, y)
		for x := uint32(1); x <= width; x++ {
			c.drawCell(x, y)
		}
	}
}

func (c *ansiConsole) drawCell(x, y uint32) {
	ch, fg, bg := c.Cell(x, y)
	c.setColors(fg, bg)
	if ch < ' ' || ch > '~' {
		ch = ' '
	}
	c.buf.WriteByte(ch)
}

func (c *ansiConsole) moveTo(x, y uint32) {
	fmt.Fprintf(&c.buf, "\x1b[%d;%dH", y, x)
}

func (c *ansiConsole) setColors(fg, bg uint8) {
	if int(fg) == c.lastFg && int(bg) == c.lastBg {
		return
	}

	fgCode, bgCode := 30+int(vgaToANSI[fg&7]), 40+int(vgaToANSI[bg&7])
	if fg&8 != 0 {
		fgCode += 60
	}
	if bg&8 != 0 {
		bgCode += 60
	}

	fmt.Fprintf(&c.buf, "\x1b[%d;%dm", fgCode, bgCode)
	c.lastFg, c.lastBg = int(fg), int(bg)
}

func (c *ansiConsole) flush() {
	if c.buf.Len() == 0 {
		return
	}

	c.out.Write(c.buf.Bytes())
	c.buf.Reset()
}
