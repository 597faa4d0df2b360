// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

// Framebuffer mirrors the remote desktop's screen image: fixed geometry and
// a mutable pixel buffer of width*height ARGB entries, created once after
// ServerInit and never resized — the protocol has no reshape message in
// this core.
type Framebuffer struct {
	Width, Height uint16
	DesktopName   string
	Format        PixelFormat
	ColorMap      *ColorMap

	pixels []ARGB
}

// NewFramebuffer allocates a framebuffer of the given geometry.
func NewFramebuffer(width, height uint16, format PixelFormat, desktopName string) (*Framebuffer, error) {
	if err := newInputValidator().ValidateFramebufferDimensions(width, height); err != nil {
		return nil, err
	}

	return &Framebuffer{
		Width:       width,
		Height:      height,
		DesktopName: desktopName,
		Format:      format,
		ColorMap:    NewColorMap(),
		pixels:      make([]ARGB, int(width)*int(height)),
	}, nil
}

// At returns the pixel at (x, y).
func (fb *Framebuffer) At(x, y uint16) ARGB {
	return fb.pixels[fb.index(x, y)]
}

// Set writes a single pixel at (x, y).
func (fb *Framebuffer) Set(x, y uint16, c ARGB) {
	fb.pixels[fb.index(x, y)] = c
}

// index computes the linear offset of (x, y) in the pixel buffer.
func (fb *Framebuffer) index(x, y uint16) int {
	return int(y)*int(fb.Width) + int(x)
}

// FillRect fills the w x h rectangle at (x, y) with a single color.
func (fb *Framebuffer) FillRect(x, y, w, h uint16, c ARGB) {
	for row := uint16(0); row < h; row++ {
		base := fb.index(x, y+row)
		for col := uint16(0); col < w; col++ {
			fb.pixels[base+int(col)] = c
		}
	}
}

// CopyRect copies a w x h region from (srcX, srcY) to (x, y), handling
// source/destination overlap correctly per §4.4: rows (and, within a row,
// columns) are iterated in the direction that never reads a pixel this copy
// has already overwritten.
func (fb *Framebuffer) CopyRect(srcX, srcY, x, y, w, h uint16) {
	rowsBottomUp := srcY < y || (srcY == y && srcX < x)

	colsLeftToRight := srcX >= x

	if !rowsBottomUp {
		for row := uint16(0); row < h; row++ {
			fb.copyRow(srcX, srcY+row, x, y+row, w, colsLeftToRight)
		}
		return
	}

	for row := h; row > 0; row-- {
		r := row - 1
		fb.copyRow(srcX, srcY+r, x, y+r, w, colsLeftToRight)
	}
}

// copyRow copies one row of w pixels from (srcX, srcY) to (x, y). When
// colsLeftToRight is false the columns within the row are copied back to
// front, which is required whenever the source row and destination row are
// the same row and the source starts to the left of the destination.
func (fb *Framebuffer) copyRow(srcX, srcY, x, y, w uint16, colsLeftToRight bool) {
	srcBase := fb.index(srcX, srcY)
	dstBase := fb.index(x, y)

	if srcBase == dstBase {
		return
	}

	if colsLeftToRight {
		for col := uint16(0); col < w; col++ {
			fb.pixels[dstBase+int(col)] = fb.pixels[srcBase+int(col)]
		}
		return
	}

	for col := w; col > 0; col-- {
		c := col - 1
		fb.pixels[dstBase+int(c)] = fb.pixels[srcBase+int(c)]
	}
}
