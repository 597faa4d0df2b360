// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHextileDecoderRawTile(t *testing.T) {
	var payload []byte
	payload = append(payload, hextileRaw) // subencoding byte
	for i := 0; i < 16; i++ {
		payload = append(payload, pixel16(7)...)
	}

	ctx, fb := newTestDecodeContext(t, payload)
	rect := Rectangle{X: 0, Y: 0, Width: 4, Height: 4, Encoding: EncodingHextile}

	require.NoError(t, hextileDecoder{}.Decode(ctx, rect))
	require.Equal(t, fb.At(0, 0), fb.At(3, 3))
}

// TestHextileDecoderBackgroundAndSubrect corresponds to the Hextile scenario
// where the background color persists and a colored subrectangle paints
// over a portion of the tile.
func TestHextileDecoderBackgroundAndSubrect(t *testing.T) {
	const subenc = hextileBackgroundSpecified | hextileAnySubrects | hextileSubrectsColoured

	var payload []byte
	payload = append(payload, subenc)
	payload = append(payload, pixel16(1)...) // background
	payload = append(payload, 1)             // one subrectangle
	payload = append(payload, pixel16(9)...) // subrect color
	payload = append(payload, byte(0x11))    // xy: x=1, y=1
	payload = append(payload, byte(0x00))    // wh: w=1, h=1

	ctx, fb := newTestDecodeContext(t, payload)
	rect := Rectangle{X: 0, Y: 0, Width: 4, Height: 4, Encoding: EncodingHextile}

	require.NoError(t, hextileDecoder{}.Decode(ctx, rect))
	require.NotEqual(t, fb.At(0, 0), fb.At(1, 1))
}

func TestHextileDecoderRejectsConflictingSubencoding(t *testing.T) {
	const subenc = hextileForegroundSpecified | hextileSubrectsColoured
	payload := []byte{subenc}

	ctx, _ := newTestDecodeContext(t, payload)
	rect := Rectangle{X: 0, Y: 0, Width: 4, Height: 4, Encoding: EncodingHextile}

	require.Error(t, hextileDecoder{}.Decode(ctx, rect))
}
