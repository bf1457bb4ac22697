package console

import (
	"image/color"
	"io"
	"unsafe"

	"antiglory/kernel"
	"antiglory/kernel/kfmt"
)

var errNoFramebuffer = &kernel.Error{Module: "vga_text_console", Message: "framebuffer address not set"}

// VgaTextConsole implements an EGA-compatible text console such as the 80x25
// VGA mode 0x3 console. Each character cell occupies two bytes of the
// framebuffer: the character ASCII code in the low byte and the foreground
// and background colors (4 bits each) in the high byte.
//
// Cleared cells contain a space drawn light gray on black (0x0720).
type VgaTextConsole struct {
	width  uint32
	height uint32

	fbAddr uintptr
	fb     []uint16

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
	clearChar uint16
}

// NewVgaTextConsole creates a new vga text console whose framebuffer lives
// at fbAddr. The framebuffer is not touched until DriverInit is invoked.
func NewVgaTextConsole(columns, rows uint32, fbAddr uintptr) *VgaTextConsole {
	return &VgaTextConsole{
		width:     columns,
		height:    rows,
		fbAddr:    fbAddr,
		clearChar: uint16(' '),
		palette: color.Palette{
			color.RGBA{R: 0, G: 0, B: 0, A: 255},       /* black */
			color.RGBA{R: 0, G: 0, B: 170, A: 255},     /* blue */
			color.RGBA{R: 0, G: 170, B: 0, A: 255},     /* green */
			color.RGBA{R: 0, G: 170, B: 170, A: 255},   /* cyan */
			color.RGBA{R: 170, G: 0, B: 0, A: 255},     /* red */
			color.RGBA{R: 170, G: 0, B: 170, A: 255},   /* magenta */
			color.RGBA{R: 170, G: 85, B: 0, A: 255},    /* brown */
			color.RGBA{R: 170, G: 170, B: 170, A: 255}, /* light gray */
			color.RGBA{R: 85, G: 85, B: 85, A: 255},    /* dark gray */
			color.RGBA{R: 85, G: 85, B: 255, A: 255},   /* light blue */
			color.RGBA{R: 85, G: 255, B: 85, A: 255},   /* light green */
			color.RGBA{R: 85, G: 255, B: 255, A: 255},  /* light cyan */
			color.RGBA{R: 255, G: 85, B: 85, A: 255},   /* light red */
			color.RGBA{R: 255, G: 85, B: 255, A: 255},  /* light magenta */
			color.RGBA{R: 255, G: 255, B: 85, A: 255},  /* yellow */
			color.RGBA{R: 255, G: 255, B: 255, A: 255}, /* white */
		},
		// light gray text on black background
		defaultFg: 7,
		defaultBg: 0,
	}
}

// Dimensions returns the console width and height in characters.
func (cons *VgaTextConsole) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaTextConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	var (
		clr                  = cell(cons.clearChar, fg, bg)
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.width {
		x = cons.width
	}

	if y == 0 {
		y = 1
	} else if y >= cons.height {
		y = cons.height
	}

	if x+width-1 > cons.width {
		width = cons.width - x + 1
	}

	if y+height-1 > cons.height {
		height = cons.height - y + 1
	}

	rowOffset = ((y - 1) * cons.width) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Clear resets every cell of the console to the clear character drawn with
// the default colors.
func (cons *VgaTextConsole) Clear() {
	cons.Fill(1, 1, cons.width, cons.height, cons.defaultFg, cons.defaultBg)
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := lines * cons.width
	switch dir {
	case ScrollDirUp:
		copy(cons.fb, cons.fb[offset:])
	case ScrollDirDown:
		copy(cons.fb[offset:], cons.fb[:uint32(len(cons.fb))-offset])
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they will be set to their default value. Both x and
// y coordinates are 1-based.
func (cons *VgaTextConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	maxColorIndex := uint8(len(cons.palette) - 1)
	if fg > maxColorIndex {
		fg = cons.defaultFg
	}
	if bg > maxColorIndex {
		bg = cons.defaultBg
	}

	cons.fb[((y-1)*cons.width)+(x-1)] = cell(uint16(ch), fg, bg)
}

// Cell returns the character and colors stored at the specified location.
// Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Cell(x, y uint32) (ch byte, fg, bg uint8) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return 0, 0, 0
	}

	v := cons.fb[((y-1)*cons.width)+(x-1)]
	return byte(v), uint8(v>>8) & 0xf, uint8(v >> 12)
}

// Palette returns the color palette for this console.
func (cons *VgaTextConsole) Palette() color.Palette {
	return cons.palette
}

// DriverName returns the name of this driver.
func (cons *VgaTextConsole) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *VgaTextConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit binds the framebuffer and clears the screen.
func (cons *VgaTextConsole) DriverInit(w io.Writer) *kernel.Error {
	if cons.fbAddr == 0 {
		return errNoFramebuffer
	}

	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(cons.fbAddr)), cons.width*cons.height)
	cons.Clear()

	kfmt.Fprintf(w, "%dx%d framebuffer at 0x%x\n", cons.width, cons.height, cons.fbAddr)
	return nil
}

func cell(ch uint16, fg, bg uint8) uint16 {
	return (((uint16(bg) << 4) | uint16(fg)) << 8) | ch
}
