// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

// rawDecoder decodes the Raw encoding: w*h pixels, row-major, written
// directly into the framebuffer with no compression.
type rawDecoder struct{}

// Type returns the Raw encoding type identifier.
func (rawDecoder) Type() int32 { return EncodingRaw }

// Decode reads rect.Width*rect.Height pixels from ctx and writes them into
// the framebuffer in row-major order.
func (rawDecoder) Decode(ctx *decodeContext, rect Rectangle) error {
	for row := uint16(0); row < rect.Height; row++ {
		for col := uint16(0); col < rect.Width; col++ {
			c, err := ctx.pixels.ReadPixel(ctx.fr.r)
			if err != nil {
				return encodingError("rawDecoder.Decode", "failed to read pixel data", err)
			}
			ctx.fb.Set(rect.X+col, rect.Y+row, c)
		}
	}
	return nil
}
