// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import "fmt"

const zrleTileSize = 64

// zrleDecoder decodes the ZRLE encoding: the rectangle's pixel data is
// carried on a persistent zlib-compressed substream (one length-prefixed
// block per rectangle, continuing the same inflate stream across the whole
// session) and is itself divided into 64x64 tiles, each with its own
// subencoding byte describing how the tile is packed.
type zrleDecoder struct{}

// Type returns the ZRLE encoding type identifier.
func (zrleDecoder) Type() int32 { return EncodingZRLE }

// Decode implements rectangleDecoder for ZRLE.
func (zrleDecoder) Decode(ctx *decodeContext, rect Rectangle) error {
	if err := ctx.zrle.beginRectangle(ctx.fr); err != nil {
		return encodingError("zrleDecoder.Decode", "failed to begin ZRLE rectangle", err)
	}

	validator := newInputValidator()

	for tileY := uint16(0); tileY < rect.Height; tileY += zrleTileSize {
		tileH := uint16(zrleTileSize)
		if tileY+tileH > rect.Height {
			tileH = rect.Height - tileY
		}

		for tileX := uint16(0); tileX < rect.Width; tileX += zrleTileSize {
			tileW := uint16(zrleTileSize)
			if tileX+tileW > rect.Width {
				tileW = rect.Width - tileX
			}

			originX, originY := rect.X+tileX, rect.Y+tileY
			if err := decodeZRLETile(ctx, validator, originX, originY, tileW, tileH); err != nil {
				return err
			}
		}
	}

	return nil
}

// decodeZRLETile decodes a single tile's subencoding byte and its payload,
// writing pixels directly into the framebuffer.
func decodeZRLETile(ctx *decodeContext, validator *InputValidator, originX, originY, tileW, tileH uint16) error {
	subenc, err := ctx.zrle.readU8()
	if err != nil {
		return encodingError("zrleDecoder.Decode", "failed to read tile subencoding", err)
	}
	if err := validator.ValidateZRLESubencoding(subenc); err != nil {
		return encodingError("zrleDecoder.Decode", "invalid tile subencoding", err)
	}

	switch {
	case subenc == 0:
		return decodeZRLERaw(ctx, originX, originY, tileW, tileH)
	case subenc == 1:
		return decodeZRLESolid(ctx, originX, originY, tileW, tileH)
	case subenc >= 2 && subenc <= 16:
		return decodeZRLEPackedPalette(ctx, originX, originY, tileW, tileH, subenc)
	case subenc == 128:
		return decodeZRLEPlainRLE(ctx, originX, originY, tileW, tileH)
	case subenc >= 130:
		return decodeZRLEPaletteRLE(ctx, originX, originY, tileW, tileH, subenc-128)
	default:
		return encodingError("zrleDecoder.Decode", fmt.Sprintf("unsupported tile subencoding: %d", subenc), nil)
	}
}

// decodeZRLERaw reads tileW*tileH CPIXELs in row-major order.
func decodeZRLERaw(ctx *decodeContext, originX, originY, tileW, tileH uint16) error {
	for row := uint16(0); row < tileH; row++ {
		for col := uint16(0); col < tileW; col++ {
			c, err := ctx.pixels.readCPixel(ctx.zrle)
			if err != nil {
				return encodingError("zrleDecoder.Decode", "failed to read raw tile pixel", err)
			}
			ctx.fb.Set(originX+col, originY+row, c)
		}
	}
	return nil
}

// decodeZRLESolid reads a single CPIXEL and fills the whole tile with it.
func decodeZRLESolid(ctx *decodeContext, originX, originY, tileW, tileH uint16) error {
	c, err := ctx.pixels.readCPixel(ctx.zrle)
	if err != nil {
		return encodingError("zrleDecoder.Decode", "failed to read solid tile color", err)
	}
	ctx.fb.FillRect(originX, originY, tileW, tileH, c)
	return nil
}

// zrlePaletteBits returns the number of bits per pixel index a packed
// palette of the given size is packed at: 1 bit for a 2-entry palette, 2
// bits for 3-4 entries, 4 bits for 5-16 entries.
func zrlePaletteBits(paletteSize uint8) int {
	switch {
	case paletteSize == 2:
		return 1
	case paletteSize <= 4:
		return 2
	default:
		return 4
	}
}

// decodeZRLEPackedPalette reads a paletteSize-entry palette of CPIXELs, then
// the tile's pixel indices packed at zrlePaletteBits(paletteSize) bits per
// pixel, each row byte-padded independently of the others.
func decodeZRLEPackedPalette(ctx *decodeContext, originX, originY, tileW, tileH uint16, paletteSize uint8) error {
	palette := make([]ARGB, paletteSize)
	for i := range palette {
		c, err := ctx.pixels.readCPixel(ctx.zrle)
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read palette entry", err)
		}
		palette[i] = c
	}

	bits := zrlePaletteBits(paletteSize)
	rowBytes := (int(tileW)*bits + 7) / 8

	for row := uint16(0); row < tileH; row++ {
		packed, err := ctx.zrle.readBytes(rowBytes)
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read packed palette row", err)
		}

		bitPos := 0
		for col := uint16(0); col < tileW; col++ {
			idx := readPackedIndex(packed, bitPos, bits)
			bitPos += bits
			if int(idx) >= len(palette) {
				return encodingError("zrleDecoder.Decode", fmt.Sprintf("palette index %d out of range", idx), nil)
			}
			ctx.fb.Set(originX+col, originY+row, palette[idx])
		}
	}

	return nil
}

// readPackedIndex extracts a bits-wide, MSB-first index starting at bitPos
// within packed.
func readPackedIndex(packed []byte, bitPos, bits int) uint8 {
	var v uint8
	for i := 0; i < bits; i++ {
		byteIdx := (bitPos + i) / 8
		shift := 7 - (bitPos+i)%8
		bit := (packed[byteIdx] >> shift) & 1
		v = v<<1 | bit
	}
	return v
}

// readZRLERunLength reads a ZRLE run length: a chain of bytes, each
// contributing its value to the sum, continuing while the byte read is 255;
// the final (non-255) byte also contributes. The run length is 1 plus that
// sum.
func readZRLERunLength(ctx *decodeContext) (int, error) {
	sum := 0
	for {
		b, err := ctx.zrle.readU8()
		if err != nil {
			return 0, err
		}
		sum += int(b)
		if b != 255 {
			break
		}
	}
	return sum + 1, nil
}

// decodeZRLEPlainRLE reads (CPIXEL, run-length) pairs until the tile's
// tileW*tileH pixels are filled, writing pixels in row-major order.
func decodeZRLEPlainRLE(ctx *decodeContext, originX, originY, tileW, tileH uint16) error {
	total := int(tileW) * int(tileH)
	written := 0

	for written < total {
		c, err := ctx.pixels.readCPixel(ctx.zrle)
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read RLE pixel", err)
		}
		length, err := readZRLERunLength(ctx)
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read RLE run length", err)
		}
		if written+length > total {
			return encodingError("zrleDecoder.Decode", "RLE run overruns tile bounds", nil)
		}

		for i := 0; i < length; i++ {
			pos := written + i
			ctx.fb.Set(originX+uint16(pos%int(tileW)), originY+uint16(pos/int(tileW)), c)
		}
		written += length
	}

	return nil
}

// decodeZRLEPaletteRLE reads a paletteSize-entry palette of CPIXELs, then
// (index, run-length) pairs until the tile is filled. Each index byte's top
// bit signals that a run-length chain follows (length > 1); when clear the
// run length is 1 and the index occupies the low 7 bits either way.
func decodeZRLEPaletteRLE(ctx *decodeContext, originX, originY, tileW, tileH uint16, paletteSize uint8) error {
	palette := make([]ARGB, paletteSize)
	for i := range palette {
		c, err := ctx.pixels.readCPixel(ctx.zrle)
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read palette entry", err)
		}
		palette[i] = c
	}

	total := int(tileW) * int(tileH)
	written := 0

	for written < total {
		indexByte, err := ctx.zrle.readU8()
		if err != nil {
			return encodingError("zrleDecoder.Decode", "failed to read palette RLE index", err)
		}
		idx := indexByte & 0x7F
		if int(idx) >= len(palette) {
			return encodingError("zrleDecoder.Decode", fmt.Sprintf("palette index %d out of range", idx), nil)
		}

		length := 1
		if indexByte&0x80 != 0 {
			length, err = readZRLERunLength(ctx)
			if err != nil {
				return encodingError("zrleDecoder.Decode", "failed to read palette RLE run length", err)
			}
		}
		if written+length > total {
			return encodingError("zrleDecoder.Decode", "palette RLE run overruns tile bounds", nil)
		}

		c := palette[idx]
		for i := 0; i < length; i++ {
			pos := written + i
			ctx.fb.Set(originX+uint16(pos%int(tileW)), originY+uint16(pos/int(tileW)), c)
		}
		written += length
	}

	return nil
}
