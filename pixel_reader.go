// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import "io"

// PixelReader decodes a single wire pixel into a 32-bit ARGB value per the
// active pixel format. True-color pixels are composed from the format's
// shift/max triples; indexed pixels are resolved through the session's
// color map.
type PixelReader struct {
	format    *PixelFormat
	converter *PixelFormatConverter
	colorMap  *ColorMap
}

// newPixelReader constructs a PixelReader for format, consulting colorMap
// for indexed (non-true-color) pixel formats.
func newPixelReader(format *PixelFormat, colorMap *ColorMap) (*PixelReader, error) {
	converter, err := NewPixelFormatConverter(format)
	if err != nil {
		return nil, err
	}
	return &PixelReader{format: format, converter: converter, colorMap: colorMap}, nil
}

// BytesPerPixel returns the wire width of one pixel in this format.
func (p *PixelReader) BytesPerPixel() int {
	return p.converter.BytesPerPixel()
}

// ReadPixel reads one wire pixel from r and returns its ARGB value.
func (p *PixelReader) ReadPixel(r io.Reader) (ARGB, error) {
	raw, err := p.converter.ReadPixel(r)
	if err != nil {
		return 0, err
	}
	return p.compose(raw), nil
}

// compose turns a raw pixel word into an ARGB value, dispatching on whether
// the active format is true-color or indexed.
func (p *PixelReader) compose(raw uint32) ARGB {
	if p.format.TrueColor {
		r, g, b := p.converter.ExtractRGB(raw)
		return NewARGB(0xFF, r, g, b)
	}
	return p.colorMap.Get(uint8(raw)) // #nosec G115 - indexed pixels are always <= 8 bits wide
}

// zrleCPixelSize returns the width in bytes of a ZRLE CPIXEL for the active
// format: 3 bytes when the format is 32 bpp and its color components fit in
// 24 bits (the unused padding byte is simply never sent), the ordinary
// pixel width otherwise. Per §9's Open Question resolution this follows the
// RFB specification rather than always reading full-width pixels.
func (p *PixelReader) zrleCPixelSize() int {
	if p.format.BPP == 32 {
		bits := countBits(p.format.RedMax) + countBits(p.format.GreenMax) + countBits(p.format.BlueMax)
		if bits <= 24 {
			return 3
		}
	}
	return p.BytesPerPixel()
}

// readCPixel reads one ZRLE CPIXEL from the ZRLE substream and composes it
// into an ARGB value.
func (p *PixelReader) readCPixel(zr *compressedStream) (ARGB, error) {
	size := p.zrleCPixelSize()
	b, err := zr.readBytes(size)
	if err != nil {
		return 0, err
	}

	var raw uint32
	switch size {
	case 1:
		raw = uint32(b[0])
	case 2:
		if p.format.BigEndian {
			raw = uint32(b[0])<<8 | uint32(b[1])
		} else {
			raw = uint32(b[0]) | uint32(b[1])<<8
		}
	case 3:
		if p.format.BigEndian {
			raw = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		} else {
			raw = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
		}
	case 4:
		if p.format.BigEndian {
			raw = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
		} else {
			raw = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		}
	}

	return p.compose(raw), nil
}
