// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSetPixelFormatWireShape(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.NoError(t, writeSetPixelFormat(fw, trueColorFormat16()))

	require.Equal(t, msgSetPixelFormat, buf.Bytes()[0])
	require.Equal(t, 4+16, buf.Len())
}

func TestWriteSetEncodingsOrderAndCount(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.NoError(t, writeSetEncodings(fw, preferredEncodingOrder))

	fr := newFrameReader(&buf)
	msgType, err := fr.readU8()
	require.NoError(t, err)
	require.Equal(t, msgSetEncodings, msgType)

	require.NoError(t, fr.readPadding(1))
	count, err := fr.readU16()
	require.NoError(t, err)
	require.Equal(t, uint16(len(preferredEncodingOrder)), count)

	for _, want := range preferredEncodingOrder {
		got, err := fr.readI32()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestWriteFramebufferUpdateRequestIncrementalFlag(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.NoError(t, writeFramebufferUpdateRequest(fw, true, 1, 2, 3, 4))

	want := []byte{msgFramebufferUpdateReq, 1, 0, 1, 0, 2, 0, 3, 0, 4}
	require.Equal(t, want, buf.Bytes())
}

func TestWriteKeyEventEncodesDownFlagAndKeysym(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.NoError(t, writeKeyEvent(fw, uint32(KeysymReturn), true))

	want := []byte{msgKeyEvent, 1, 0, 0, 0x00, 0x00, 0xFF, 0x0D}
	require.Equal(t, want, buf.Bytes())
}

func TestWriteClientCutTextRejectsNonLatin1(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.Error(t, writeClientCutText(fw, "héllo中"))
}

func TestWriteClientCutTextAcceptsLatin1(t *testing.T) {
	var buf bytes.Buffer
	fw := newFrameWriter(&buf)
	require.NoError(t, writeClientCutText(fw, "hello"))
}

// TestReadServerCutTextThreeBytePadding corresponds to the §8 byte-accounting
// invariant: ServerCutText carries 3 padding bytes before its length field,
// not the single pad byte the other server messages use.
func TestReadServerCutTextThreeBytePadding(t *testing.T) {
	var payload []byte
	payload = append(payload, 0, 0, 0) // 3 padding bytes
	payload = append(payload, u32(uint32(len("clip text")))...)
	payload = append(payload, []byte("clip text")...)

	fr := newFrameReader(bytes.NewReader(payload))
	text, err := readServerCutText(fr, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, "clip text", text)
}

func TestReadFramebufferUpdateRejectsTooManyRectangles(t *testing.T) {
	var payload []byte
	payload = append(payload, 0) // padding
	payload = append(payload, u16(uint16(MaxRectanglesPerUpdate+1))...)

	format := trueColorFormat16()
	fb, err := NewFramebuffer(8, 8, *format, "")
	require.NoError(t, err)
	pixels, err := newPixelReader(format, NewColorMap())
	require.NoError(t, err)

	ctx := &decodeContext{fr: newFrameReader(bytes.NewReader(payload)), pixels: pixels, fb: fb}
	_, err = readFramebufferUpdate(ctx, newInputValidator())
	require.Error(t, err)
}

func TestReadSetColourMapEntriesInstallsColors(t *testing.T) {
	var payload []byte
	payload = append(payload, 0) // padding
	payload = append(payload, u16(5)...)
	payload = append(payload, u16(1)...) // numColors = 1
	payload = append(payload, u16(65535)...) // red
	payload = append(payload, u16(0)...)     // green
	payload = append(payload, u16(32768)...) // blue

	fr := newFrameReader(bytes.NewReader(payload))
	cm := NewColorMap()
	require.NoError(t, readSetColourMapEntries(fr, cm, newInputValidator()))

	c := cm.Get(5)
	require.Equal(t, uint8(255), c.R())
	require.Equal(t, uint8(0), c.G())
}
