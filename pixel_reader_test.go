// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPixelReaderReadPixelTrueColor(t *testing.T) {
	format := trueColorFormat16()
	pr, err := newPixelReader(format, NewColorMap())
	require.NoError(t, err)

	pixel := uint32(31)<<11 | uint32(63)<<5 | uint32(31)
	buf := []byte{byte(pixel), byte(pixel >> 8)}

	c, err := pr.ReadPixel(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, uint8(255), c.R())
	require.Equal(t, uint8(255), c.G())
	require.Equal(t, uint8(255), c.B())
}

func TestPixelReaderReadPixelIndexedConsultsColorMap(t *testing.T) {
	format := &PixelFormat{BPP: 8, Depth: 8, TrueColor: false}
	cm := NewColorMap()
	pr, err := newPixelReader(format, cm)
	require.NoError(t, err)

	c, err := pr.ReadPixel(bytes.NewReader([]byte{42}))
	require.NoError(t, err)
	require.Equal(t, cm.Get(42), c)
}

func TestZRLECPixelSizeIs3BytesForPacked24BitTrueColor(t *testing.T) {
	format := &PixelFormat{
		BPP: 32, Depth: 24, TrueColor: true,
		RedMax: 255, GreenMax: 255, BlueMax: 255,
		RedShift: 16, GreenShift: 8, BlueShift: 0,
	}
	pr, err := newPixelReader(format, NewColorMap())
	require.NoError(t, err)
	require.Equal(t, 3, pr.zrleCPixelSize())
}

func TestZRLECPixelSizeIsFullWidthWhenColorBitsExceed24(t *testing.T) {
	format := &PixelFormat{
		BPP: 32, Depth: 32, TrueColor: true,
		RedMax: 1023, GreenMax: 1023, BlueMax: 1023,
		RedShift: 20, GreenShift: 10, BlueShift: 0,
	}
	pr, err := newPixelReader(format, NewColorMap())
	require.NoError(t, err)
	require.Equal(t, 4, pr.zrleCPixelSize())
}

func TestZRLECPixelSizeForNon32BPPIsBytesPerPixel(t *testing.T) {
	pr, err := newPixelReader(trueColorFormat16(), NewColorMap())
	require.NoError(t, err)
	require.Equal(t, 2, pr.zrleCPixelSize())
}
