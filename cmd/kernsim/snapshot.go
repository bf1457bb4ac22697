package main

import (
	"antiglory/device/video/console"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	cellWidth  = 8
	cellHeight = 16

	// glyphBaseline is the offset of the font baseline from the top of a
	// cell.
	glyphBaseline = 12
)

// renderSnapshot draws the contents of cons the way a VGA adapter would
// scan them out, using the console palette for the cell colors.
func renderSnapshot(cons *console.VgaTextConsole) *gg.Context {
	width, height := cons.Dimensions()
	palette := cons.Palette()

	dc := gg.NewContext(int(width*cellWidth), int(height*cellHeight))
	dc.SetFontFace(basicfont.Face7x13)

	for y := uint32(1); y <= height; y++ {
		for x := uint32(1); x <= width; x++ {
			ch, fg, bg := cons.Cell(x, y)
			left, top := float64((x-1)*cellWidth), float64((y-1)*cellHeight)

			dc.SetColor(palette[bg])
			dc.DrawRectangle(left, top, cellWidth, cellHeight)
			dc.Fill()

			if ch <= ' ' || ch > '~' {
				continue
			}

			dc.SetColor(palette[fg])
			dc.DrawString(string(rune(ch)), left, top+glyphBaseline)
		}
	}

	return dc
}

// saveSnapshot writes a PNG rendering of cons to path.
func saveSnapshot(cons *console.VgaTextConsole, path string) error {
	return renderSnapshot(cons).SavePNG(path)
}
