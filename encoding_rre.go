// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import "fmt"

// maxRRESubrects caps the subrectangle count RRE/CoRRE will allocate for,
// guarding against a hostile or corrupt server requesting an enormous
// allocation.
const maxRRESubrects = 1_000_000

// rreDecoder decodes the RRE encoding: a u32 subrectangle count, one
// background pixel, then that many (pixel, u16 x, u16 y, u16 w, u16 h)
// records. The whole rectangle is filled with the background color first,
// then each subrectangle is painted over it.
type rreDecoder struct{}

// Type returns the RRE encoding type identifier.
func (rreDecoder) Type() int32 { return EncodingRRE }

// Decode implements rectangleDecoder for RRE.
func (rreDecoder) Decode(ctx *decodeContext, rect Rectangle) error {
	n, err := ctx.fr.readU32()
	if err != nil {
		return encodingError("rreDecoder.Decode", "failed to read subrectangle count", err)
	}
	if n > maxRRESubrects {
		return encodingError("rreDecoder.Decode", fmt.Sprintf("too many subrectangles: %d", n), nil)
	}

	background, err := ctx.pixels.ReadPixel(ctx.fr.r)
	if err != nil {
		return encodingError("rreDecoder.Decode", "failed to read background color", err)
	}
	ctx.fb.FillRect(rect.X, rect.Y, rect.Width, rect.Height, background)

	for i := uint32(0); i < n; i++ {
		color, err := ctx.pixels.ReadPixel(ctx.fr.r)
		if err != nil {
			return encodingError("rreDecoder.Decode", "failed to read subrectangle color", err)
		}
		x, err := ctx.fr.readU16()
		if err != nil {
			return encodingError("rreDecoder.Decode", "failed to read subrectangle X", err)
		}
		y, err := ctx.fr.readU16()
		if err != nil {
			return encodingError("rreDecoder.Decode", "failed to read subrectangle Y", err)
		}
		w, err := ctx.fr.readU16()
		if err != nil {
			return encodingError("rreDecoder.Decode", "failed to read subrectangle width", err)
		}
		h, err := ctx.fr.readU16()
		if err != nil {
			return encodingError("rreDecoder.Decode", "failed to read subrectangle height", err)
		}

		if err := newInputValidator().ValidateRectangle(x, y, w, h, rect.Width, rect.Height); err != nil {
			return encodingError("rreDecoder.Decode", "subrectangle exceeds parent rectangle bounds", err)
		}

		ctx.fb.FillRect(rect.X+x, rect.Y+y, w, h, color)
	}

	return nil
}
