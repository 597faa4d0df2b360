// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import "fmt"

// coRREDecoder decodes the CoRRE encoding, grounded on the same
// background-then-subrectangles structure as RRE but with byte-sized
// subrectangle coordinates and sizes, valid only because a CoRRE
// rectangle's dimensions are guaranteed to be at most 255 on either axis.
type coRREDecoder struct{}

// Type returns the CoRRE encoding type identifier.
func (coRREDecoder) Type() int32 { return EncodingCoRRE }

// Decode implements rectangleDecoder for CoRRE.
func (coRREDecoder) Decode(ctx *decodeContext, rect Rectangle) error {
	n, err := ctx.fr.readU32()
	if err != nil {
		return encodingError("coRREDecoder.Decode", "failed to read subrectangle count", err)
	}
	if n > maxRRESubrects {
		return encodingError("coRREDecoder.Decode", fmt.Sprintf("too many subrectangles: %d", n), nil)
	}

	background, err := ctx.pixels.ReadPixel(ctx.fr.r)
	if err != nil {
		return encodingError("coRREDecoder.Decode", "failed to read background color", err)
	}
	ctx.fb.FillRect(rect.X, rect.Y, rect.Width, rect.Height, background)

	for i := uint32(0); i < n; i++ {
		color, err := ctx.pixels.ReadPixel(ctx.fr.r)
		if err != nil {
			return encodingError("coRREDecoder.Decode", "failed to read subrectangle color", err)
		}
		xb, err := ctx.fr.readU8()
		if err != nil {
			return encodingError("coRREDecoder.Decode", "failed to read subrectangle X", err)
		}
		yb, err := ctx.fr.readU8()
		if err != nil {
			return encodingError("coRREDecoder.Decode", "failed to read subrectangle Y", err)
		}
		wb, err := ctx.fr.readU8()
		if err != nil {
			return encodingError("coRREDecoder.Decode", "failed to read subrectangle width", err)
		}
		hb, err := ctx.fr.readU8()
		if err != nil {
			return encodingError("coRREDecoder.Decode", "failed to read subrectangle height", err)
		}

		x, y, w, h := uint16(xb), uint16(yb), uint16(wb), uint16(hb)
		if err := newInputValidator().ValidateRectangle(x, y, w, h, rect.Width, rect.Height); err != nil {
			return encodingError("coRREDecoder.Decode", "subrectangle exceeds parent rectangle bounds", err)
		}

		ctx.fb.FillRect(rect.X+x, rect.Y+y, w, h, color)
	}

	return nil
}
