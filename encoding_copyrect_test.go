// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCopyRectDecoderCopiesFramebufferRegion corresponds to the CopyRect
// scenario: no pixel data travels on the wire, only source coordinates, and
// the decoder moves existing framebuffer content.
func TestCopyRectDecoderCopiesFramebufferRegion(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x00, 0x00} // srcX=0, srcY=0
	ctx, fb := newTestDecodeContext(t, payload)

	c := NewARGB(0xFF, 5, 6, 7)
	fb.Set(0, 0, c)

	rect := Rectangle{X: 4, Y: 4, Width: 1, Height: 1, Encoding: EncodingCopyRect}
	require.NoError(t, copyRectDecoder{}.Decode(ctx, rect))

	require.Equal(t, c, fb.At(4, 4))
}

func TestCopyRectDecoderRejectsOutOfBoundsSource(t *testing.T) {
	payload := []byte{0xFF, 0xFF, 0xFF, 0xFF} // srcX/srcY far outside an 8x8 fb
	ctx, _ := newTestDecodeContext(t, payload)

	rect := Rectangle{X: 0, Y: 0, Width: 1, Height: 1, Encoding: EncodingCopyRect}
	require.Error(t, copyRectDecoder{}.Decode(ctx, rect))
}
