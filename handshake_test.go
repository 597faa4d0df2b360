// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vnc

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProtocolVersionStandard(t *testing.T) {
	major, minor, err := parseProtocolVersion([]byte("RFB 003.008\n"))
	require.NoError(t, err)
	require.Equal(t, uint(3), major)
	require.Equal(t, uint(8), minor)
}

// TestParseProtocolVersionAppleQuirk corresponds to the Apple Remote
// Desktop / Screen Sharing banner quirk: "RFB 003.889\n" means minor 8.
func TestParseProtocolVersionAppleQuirk(t *testing.T) {
	major, minor, err := parseProtocolVersion([]byte("RFB 003.889\n"))
	require.NoError(t, err)
	require.Equal(t, uint(3), major)
	require.Equal(t, uint(8), minor)
}

// TestParseProtocolVersionUltraVNCQuirk corresponds to the UltraVNC banner
// quirk: "RFB 004.001\n" is treated as 3.8.
func TestParseProtocolVersionUltraVNCQuirk(t *testing.T) {
	major, minor, err := parseProtocolVersion([]byte("RFB 004.001\n"))
	require.NoError(t, err)
	require.Equal(t, uint(3), major)
	require.Equal(t, uint(8), minor)
}

func TestParseProtocolVersionTooShort(t *testing.T) {
	_, _, err := parseProtocolVersion([]byte("short"))
	require.Error(t, err)
}

// TestNegotiateVersionPicksHighestMutuallySupportedMinor corresponds to the
// ProtocolVersion negotiation scenario: the server advertises 3.8 and the
// client echoes back 3.8.
func TestNegotiateVersionPicksHighestMutuallySupportedMinor(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewBufferString("RFB 003.008\n")

	fr := newFrameReader(in)
	fw := newFrameWriter(&out)
	validator := newInputValidator()

	version, err := negotiateVersion(context.Background(), nil, fr, fw, validator)
	require.NoError(t, err)
	require.Equal(t, uint(3), version.major)
	require.Equal(t, uint(8), version.minor)
	require.Equal(t, "RFB 003.008\n", out.String())
}

func TestNegotiateVersionClampsToThreeSevenWhenServerOffersOnlyThatMuch(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewBufferString("RFB 003.007\n")

	fr := newFrameReader(in)
	fw := newFrameWriter(&out)

	version, err := negotiateVersion(context.Background(), nil, fr, fw, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, uint(7), version.minor)
}

// TestNegotiateVersionHandlesRepeaterBanner corresponds to the repeater
// scenario: a "RFB 000.000\n" banner means the client must write a blank
// 250-byte proxy address frame and then read the real banner that follows.
func TestNegotiateVersionHandlesRepeaterBanner(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewBufferString("RFB 000.000\nRFB 003.008\n")

	fr := newFrameReader(in)
	fw := newFrameWriter(&out)

	version, err := negotiateVersion(context.Background(), nil, fr, fw, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, uint(8), version.minor)
	require.Equal(t, repeaterProxyFrameSize+pvLen, out.Len())
}

func TestNegotiateSecurityTypesRFB33SingleType(t *testing.T) {
	in := bytes.NewBuffer(u32(uint32(SecurityTypeNone)))
	fr := newFrameReader(in)

	types, err := negotiateSecurityTypes(fr, negotiatedVersion{major: 3, minor: 3}, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, []uint8{SecurityTypeNone}, types)
}

func TestNegotiateSecurityTypesRFB37CountPrefixed(t *testing.T) {
	in := bytes.NewBuffer([]byte{2, SecurityTypeNone, SecurityTypeVNCAuth})
	fr := newFrameReader(in)

	types, err := negotiateSecurityTypes(fr, negotiatedVersion{major: 3, minor: 7}, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, []uint8{SecurityTypeNone, SecurityTypeVNCAuth}, types)
}

func TestNegotiateSecurityTypesRejectsZeroTypes(t *testing.T) {
	var payload []byte
	payload = append(payload, 0)           // count = 0
	payload = append(payload, u32(5)...)   // reason length
	payload = append(payload, []byte("denied")[:5]...)

	fr := newFrameReader(bytes.NewReader(payload))
	_, err := negotiateSecurityTypes(fr, negotiatedVersion{major: 3, minor: 8}, newInputValidator())
	require.Error(t, err)
}

func TestReadSecurityResultSuccess(t *testing.T) {
	fr := newFrameReader(bytes.NewReader(u32(0)))
	require.NoError(t, readSecurityResult(fr, negotiatedVersion{major: 3, minor: 8}))
}

func TestReadSecurityResultFailureWithReasonOn38(t *testing.T) {
	var payload []byte
	payload = append(payload, u32(1)...)
	payload = append(payload, u32(uint32(len("bad password")))...)
	payload = append(payload, []byte("bad password")...)

	fr := newFrameReader(bytes.NewReader(payload))
	err := readSecurityResult(fr, negotiatedVersion{major: 3, minor: 8})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad password")
}

func TestReadServerInitParsesGeometryFormatAndName(t *testing.T) {
	format := trueColorFormat16()
	rawFormat, err := writePixelFormat(format)
	require.NoError(t, err)

	var payload []byte
	payload = append(payload, u16(800)...)
	payload = append(payload, u16(600)...)
	payload = append(payload, rawFormat...)
	payload = append(payload, u32(uint32(len("desk")))...)
	payload = append(payload, []byte("desk")...)

	fr := newFrameReader(bytes.NewReader(payload))
	result, err := readServerInit(fr, newInputValidator())
	require.NoError(t, err)
	require.Equal(t, uint16(800), result.width)
	require.Equal(t, uint16(600), result.height)
	require.Equal(t, "desk", result.desktopName)
	require.Equal(t, *format, result.format)
}
