// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

// Hextile subencoding mask bits, per §4.4.
const (
	hextileRaw                 = 1 << 0
	hextileBackgroundSpecified = 1 << 1
	hextileForegroundSpecified = 1 << 2
	hextileAnySubrects         = 1 << 3
	hextileSubrectsColoured    = 1 << 4

	hextileTileSize = 16
)

// hextileDecoder decodes the Hextile encoding: the rectangle is divided
// into 16x16 tiles, row-major, and each tile carries its own subencoding
// byte describing how it is packed. Background and foreground colors
// persist across tiles until a tile overrides them.
type hextileDecoder struct{}

// Type returns the Hextile encoding type identifier.
func (hextileDecoder) Type() int32 { return EncodingHextile }

// Decode implements rectangleDecoder for Hextile.
func (hextileDecoder) Decode(ctx *decodeContext, rect Rectangle) error {
	var background, foreground ARGB
	validator := newInputValidator()

	for tileY := uint16(0); tileY < rect.Height; tileY += hextileTileSize {
		tileH := uint16(hextileTileSize)
		if tileY+tileH > rect.Height {
			tileH = rect.Height - tileY
		}

		for tileX := uint16(0); tileX < rect.Width; tileX += hextileTileSize {
			tileW := uint16(hextileTileSize)
			if tileX+tileW > rect.Width {
				tileW = rect.Width - tileX
			}

			originX, originY := rect.X+tileX, rect.Y+tileY

			subenc, err := ctx.fr.readU8()
			if err != nil {
				return encodingError("hextileDecoder.Decode", "failed to read tile subencoding", err)
			}
			if err := validator.ValidateHextileSubencoding(subenc); err != nil {
				return encodingError("hextileDecoder.Decode", "invalid tile subencoding", err)
			}

			if subenc&hextileRaw != 0 {
				for row := uint16(0); row < tileH; row++ {
					for col := uint16(0); col < tileW; col++ {
						c, err := ctx.pixels.ReadPixel(ctx.fr.r)
						if err != nil {
							return encodingError("hextileDecoder.Decode", "failed to read raw tile pixel", err)
						}
						ctx.fb.Set(originX+col, originY+row, c)
					}
				}
				continue
			}

			if subenc&hextileBackgroundSpecified != 0 {
				background, err = ctx.pixels.ReadPixel(ctx.fr.r)
				if err != nil {
					return encodingError("hextileDecoder.Decode", "failed to read background color", err)
				}
			}
			ctx.fb.FillRect(originX, originY, tileW, tileH, background)

			if subenc&hextileForegroundSpecified != 0 {
				foreground, err = ctx.pixels.ReadPixel(ctx.fr.r)
				if err != nil {
					return encodingError("hextileDecoder.Decode", "failed to read foreground color", err)
				}
			}

			if subenc&hextileAnySubrects == 0 {
				continue
			}

			numSubrects, err := ctx.fr.readU8()
			if err != nil {
				return encodingError("hextileDecoder.Decode", "failed to read subrectangle count", err)
			}

			for i := uint8(0); i < numSubrects; i++ {
				color := foreground
				if subenc&hextileSubrectsColoured != 0 {
					color, err = ctx.pixels.ReadPixel(ctx.fr.r)
					if err != nil {
						return encodingError("hextileDecoder.Decode", "failed to read subrectangle color", err)
					}
				}

				xy, err := ctx.fr.readU8()
				if err != nil {
					return encodingError("hextileDecoder.Decode", "failed to read subrectangle position", err)
				}
				wh, err := ctx.fr.readU8()
				if err != nil {
					return encodingError("hextileDecoder.Decode", "failed to read subrectangle dimensions", err)
				}

				sx, sy := xy>>4, xy&0x0F
				sw, sh := (wh>>4)+1, (wh&0x0F)+1

				if uint16(sx)+uint16(sw) > tileW || uint16(sy)+uint16(sh) > tileH {
					return encodingError("hextileDecoder.Decode", "subrectangle extends outside tile bounds", nil)
				}

				ctx.fb.FillRect(originX+uint16(sx), originY+uint16(sy), uint16(sw), uint16(sh), color)
			}
		}
	}

	return nil
}
